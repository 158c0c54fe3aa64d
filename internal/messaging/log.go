package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delivery status of a logged outbound message.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// LogEntry is one delivery attempt in the message log.
type LogEntry struct {
	ID            uuid.UUID
	MessageID     string
	To            string
	Body          string
	AppointmentID string
	TriggerType   string
	Status        string
	CreatedAt     time.Time
}

// MessageLog records every outbound delivery attempt.
type MessageLog struct {
	db *sql.DB
}

// NewMessageLog creates a message log on the given database handle.
func NewMessageLog(db *sql.DB) *MessageLog {
	if db == nil {
		return nil
	}
	return &MessageLog{db: db}
}

// Insert appends an attempt to the log.
func (l *MessageLog) Insert(ctx context.Context, e LogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO message_log (id, message_id, phone, body, appointment_id, trigger_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.MessageID, e.To, e.Body, e.AppointmentID, e.TriggerType, e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("messaging: insert log entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest limit entries.
func (l *MessageLog) ListRecent(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, message_id, phone, body, appointment_id, trigger_type, status, created_at
		FROM message_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: list log entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.To, &e.Body,
			&e.AppointmentID, &e.TriggerType, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan log entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messaging: iterate log entries: %w", err)
	}
	return out, nil
}
