// Package contacts keeps the patient directory the sync path and the CRUD
// surface both write into. Contacts created by a sync pass are tagged so
// staff can tell imported entries from manually captured ones.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Source says where a contact record came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceImported Source = "imported"
)

// Contact is a patient directory entry.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound indicates no contact matched the lookup.
var ErrNotFound = errors.New("contacts: not found")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for contacts.
type Store struct {
	db DB
}

// NewStore creates a contact store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Resolve matches a contact by exact phone first, then by normalized full
// name. When several contacts share a name the most recently created one
// wins; that is an accepted heuristic, not a guarantee.
func (s *Store) Resolve(ctx context.Context, fullName, phone string) (*Contact, error) {
	if strings.TrimSpace(phone) != "" {
		c, err := s.findByPhone(ctx, phone)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return s.findByName(ctx, fullName)
}

func (s *Store) findByPhone(ctx context.Context, phone string) (*Contact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, full_name, phone, source, created_at, updated_at
		FROM contacts
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1`, phone)
	return scanContact(row)
}

func (s *Store) findByName(ctx context.Context, fullName string) (*Contact, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(fullName), " "))
	if normalized == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, full_name, phone, source, created_at, updated_at
		FROM contacts
		WHERE lower(trim(full_name)) = $1
		ORDER BY created_at DESC
		LIMIT 1`, normalized)
	return scanContact(row)
}

// Create inserts a new contact.
func (s *Store) Create(ctx context.Context, c *Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Source == "" {
		c.Source = SourceManual
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO contacts (id, full_name, phone, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.FullName, c.Phone, string(c.Source), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("contacts: create: %w", err)
	}
	return nil
}

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	var source string
	err := row.Scan(&c.ID, &c.FullName, &c.Phone, &source, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("contacts: scan: %w", err)
	}
	c.Source = Source(source)
	return &c, nil
}
