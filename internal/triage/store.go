package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates no conversation exists for the session.
var ErrNotFound = errors.New("triage: conversation not found")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for conversation statuses.
type Store struct {
	db DB
}

// NewStore creates a conversation status store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const statusColumns = `session_id, phone, last_message, pain_level, urgency_color,
	status_description, pending_response, assigned_doctor, needed_specialty,
	resolved_at, created_at, updated_at`

// Get returns the conversation status for a session, or ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*ConversationStatus, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+statusColumns+`
		FROM conversation_status WHERE session_id = $1`, sessionID)
	return scanStatus(row)
}

// Upsert writes the conversation status for a session. Callers are expected
// to have applied the monotonic urgency rule before calling; the store does
// not second-guess the color it is given.
func (s *Store) Upsert(ctx context.Context, cs *ConversationStatus) error {
	now := time.Now().UTC()
	cs.UpdatedAt = now
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = now
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversation_status (session_id, phone, last_message, pain_level, urgency_color,
			status_description, pending_response, assigned_doctor, needed_specialty,
			resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET
			phone = EXCLUDED.phone,
			last_message = EXCLUDED.last_message,
			pain_level = EXCLUDED.pain_level,
			urgency_color = EXCLUDED.urgency_color,
			status_description = EXCLUDED.status_description,
			pending_response = EXCLUDED.pending_response,
			assigned_doctor = EXCLUDED.assigned_doctor,
			needed_specialty = EXCLUDED.needed_specialty,
			resolved_at = EXCLUDED.resolved_at,
			updated_at = EXCLUDED.updated_at`,
		cs.SessionID, cs.Phone, cs.LastMessage, cs.PainLevel, string(cs.UrgencyColor),
		cs.StatusDescription, cs.PendingResponse, cs.AssignedDoctor, cs.NeededSpecialty,
		cs.ResolvedAt, cs.CreatedAt, cs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("triage: upsert status: %w", err)
	}
	return nil
}

// Resolve is the explicit staff action that moves a conversation to green.
func (s *Store) Resolve(ctx context.Context, sessionID, doctor string) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE conversation_status
		SET urgency_color = $1, pending_response = FALSE, assigned_doctor = $2,
		    status_description = 'Resuelto por el equipo', resolved_at = $3, updated_at = $3
		WHERE session_id = $4`,
		string(ColorGreen), doctor, now, sessionID)
	if err != nil {
		return fmt.Errorf("triage: resolve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending returns unresolved conversations ordered by urgency rank, most
// urgent first, newest first within a rank.
func (s *Store) ListPending(ctx context.Context, limit int) ([]ConversationStatus, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+statusColumns+`
		FROM conversation_status
		WHERE pending_response = TRUE
		ORDER BY CASE urgency_color
			WHEN 'red' THEN 1 WHEN 'black' THEN 2 WHEN 'yellow' THEN 3
			WHEN 'gray' THEN 4 ELSE 5 END,
			updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("triage: list pending: %w", err)
	}
	defer rows.Close()

	var out []ConversationStatus
	for rows.Next() {
		cs, err := scanStatusRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("triage: iterate pending: %w", err)
	}
	return out, nil
}

func scanStatus(row pgx.Row) (*ConversationStatus, error) {
	var cs ConversationStatus
	var color string
	err := row.Scan(&cs.SessionID, &cs.Phone, &cs.LastMessage, &cs.PainLevel, &color,
		&cs.StatusDescription, &cs.PendingResponse, &cs.AssignedDoctor, &cs.NeededSpecialty,
		&cs.ResolvedAt, &cs.CreatedAt, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("triage: scan status: %w", err)
	}
	cs.UrgencyColor = Color(color)
	return &cs, nil
}

func scanStatusRows(rows pgx.Rows) (*ConversationStatus, error) {
	var cs ConversationStatus
	var color string
	if err := rows.Scan(&cs.SessionID, &cs.Phone, &cs.LastMessage, &cs.PainLevel, &color,
		&cs.StatusDescription, &cs.PendingResponse, &cs.AssignedDoctor, &cs.NeededSpecialty,
		&cs.ResolvedAt, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
		return nil, fmt.Errorf("triage: scan status: %w", err)
	}
	cs.UrgencyColor = Color(color)
	return &cs, nil
}
