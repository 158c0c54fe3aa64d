package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store provides persistence for automation rules.
type Store struct {
	db DB
}

// NewStore creates a rule store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a new rule.
func (s *Store) Create(ctx context.Context, r *Rule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO automation_rules (id, name, trigger_type, trigger_time, enabled, template, keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Name, string(r.TriggerType), r.TriggerTime, r.Enabled, r.Template, r.Keywords, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("automation: create rule: %w", err)
	}
	return nil
}

// SetEnabled toggles a rule.
func (s *Store) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE automation_rules SET enabled = $1, updated_at = $2 WHERE id = $3`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("automation: set enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("automation: set enabled: no rule with id %s", id)
	}
	return nil
}

// ListEnabled returns every enabled rule.
func (s *Store) ListEnabled(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, trigger_type, trigger_time, enabled, template, keywords, created_at, updated_at
		FROM automation_rules
		WHERE enabled = TRUE
		ORDER BY trigger_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("automation: list enabled: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		var triggerType string
		if err := rows.Scan(&r.ID, &r.Name, &triggerType, &r.TriggerTime, &r.Enabled,
			&r.Template, &r.Keywords, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("automation: scan rule: %w", err)
		}
		r.TriggerType = TriggerType(triggerType)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("automation: iterate rules: %w", err)
	}
	return out, nil
}
