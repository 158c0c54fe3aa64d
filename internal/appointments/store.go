package appointments

import (
	"context"
	"errors"
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
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrNotFound indicates the requested appointment does not exist.
var ErrNotFound = errors.New("appointments: not found")

// Store provides persistence for appointments.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const selectColumns = `id, legacy_id, contact_id, contact_name, phone, scheduled_at, duration_min,
	treatment, doctor, status, notes, reminder_sent, consent_sent, synced_to_spreadsheet,
	last_synced_at, created_at, updated_at`

// GetByLegacyID returns the appointment created from the given legacy record,
// or ErrNotFound.
func (s *Store) GetByLegacyID(ctx context.Context, legacyID string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM appointments WHERE legacy_id = $1`, legacyID)
	return scanOne(row)
}

// FindByPhoneAndTime is the heuristic fallback key when no legacy ID exists.
// Same-day double-booking is legal, so more than one row can match; the most
// recently created one wins.
func (s *Store) FindByPhoneAndTime(ctx context.Context, phone string, scheduledAt time.Time) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE phone = $1 AND scheduled_at = $2
		ORDER BY created_at DESC
		LIMIT 1`, phone, scheduledAt)
	return scanOne(row)
}

// Create inserts a new appointment.
func (s *Store) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusScheduled
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, legacy_id, contact_id, contact_name, phone, scheduled_at,
			duration_min, treatment, doctor, status, notes, reminder_sent, consent_sent,
			synced_to_spreadsheet, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.LegacyID, a.ContactID, a.ContactName, a.Phone, a.ScheduledAt,
		a.DurationMin, a.Treatment, a.Doctor, string(a.Status), a.Notes, a.ReminderSent,
		a.ConsentSent, a.SyncedToSheet, a.LastSyncedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: create: %w", err)
	}
	return nil
}

// UpdateFromSync overwrites the clinical fields the legacy system owns. Notes
// and the bookkeeping flags are UI/automation territory and stay untouched.
func (s *Store) UpdateFromSync(ctx context.Context, a *Appointment) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET contact_name = $1, phone = $2, scheduled_at = $3, duration_min = $4,
		    treatment = $5, doctor = $6, status = $7, updated_at = $8
		WHERE id = $9`,
		a.ContactName, a.Phone, a.ScheduledAt, a.DurationMin,
		a.Treatment, a.Doctor, string(a.Status), time.Now().UTC(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("appointments: update from sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSynced records a successful ledger write. Never called optimistically:
// the spreadsheet write must already have succeeded.
func (s *Store) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET synced_to_spreadsheet = TRUE, last_synced_at = $1, updated_at = $1
		WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("appointments: mark synced: %w", err)
	}
	return nil
}

// ListRemindersDue returns appointments on the given clinic-local day whose
// reminder has not gone out and that have a phone to send to.
func (s *Store) ListRemindersDue(ctx context.Context, dayStart, dayEnd time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		  AND reminder_sent = FALSE AND phone <> ''
		  AND status NOT IN ('cancelled', 'completed')
		ORDER BY scheduled_at ASC`, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("appointments: list reminders due: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListConsentsDue is the surgery variant guarded by the consent flag. The
// treatment keyword filter is applied by the caller.
func (s *Store) ListConsentsDue(ctx context.Context, dayStart, dayEnd time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		  AND consent_sent = FALSE AND phone <> ''
		  AND status NOT IN ('cancelled', 'completed')
		ORDER BY scheduled_at ASC`, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("appointments: list consents due: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// MarkReminderSent flips the reminder flag. The WHERE guard keeps the call
// idempotent: a second attempt for the same appointment affects zero rows.
func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET reminder_sent = TRUE, updated_at = $1
		WHERE id = $2 AND reminder_sent = FALSE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("appointments: mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointments: mark reminder sent: no unsent appointment with id %s", id)
	}
	return nil
}

// MarkConsentSent flips the consent flag with the same idempotence guard.
func (s *Store) MarkConsentSent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET consent_sent = TRUE, updated_at = $1
		WHERE id = $2 AND consent_sent = FALSE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("appointments: mark consent sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointments: mark consent sent: no unsent appointment with id %s", id)
	}
	return nil
}

// ResetSentFlags clears both flags for every appointment in the date range.
// This is the explicit bulk reset; automation never calls it.
func (s *Store) ResetSentFlags(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = FALSE, consent_sent = FALSE, updated_at = $1
		WHERE scheduled_at >= $2 AND scheduled_at < $3`, time.Now().UTC(), from, to)
	if err != nil {
		return 0, fmt.Errorf("appointments: reset sent flags: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountPending reports outstanding automation work for the given day.
func (s *Store) CountPending(ctx context.Context, dayStart, dayEnd time.Time) (PendingCounts, error) {
	var counts PendingCounts
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE reminder_sent = FALSE),
			COUNT(*) FILTER (WHERE consent_sent = FALSE)
		FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		  AND status NOT IN ('cancelled', 'completed')`, dayStart, dayEnd).
		Scan(&counts.RemindersPending, &counts.ConsentsPending)
	if err != nil {
		return PendingCounts{}, fmt.Errorf("appointments: count pending: %w", err)
	}
	return counts, nil
}

func scanOne(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.LegacyID, &a.ContactID, &a.ContactName, &a.Phone, &a.ScheduledAt,
		&a.DurationMin, &a.Treatment, &a.Doctor, &status, &a.Notes, &a.ReminderSent,
		&a.ConsentSent, &a.SyncedToSheet, &a.LastSyncedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAll(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		if err := rows.Scan(
			&a.ID, &a.LegacyID, &a.ContactID, &a.ContactName, &a.Phone, &a.ScheduledAt,
			&a.DurationMin, &a.Treatment, &a.Doctor, &status, &a.Notes, &a.ReminderSent,
			&a.ConsentSent, &a.SyncedToSheet, &a.LastSyncedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		a.Status = Status(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}
