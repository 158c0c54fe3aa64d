package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a clinical encounter.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Appointment is the local record of a scheduled clinical encounter. The
// local ID is assigned once and never reused; LegacyID links back to the
// practice-management row when the record came in through a sync pass.
type Appointment struct {
	ID            uuid.UUID  `json:"id"`
	LegacyID      string     `json:"legacy_id,omitempty"`
	ContactID     uuid.UUID  `json:"contact_id"`
	ContactName   string     `json:"contact_name"`
	Phone         string     `json:"phone"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	DurationMin   int        `json:"duration_min"`
	Treatment     string     `json:"treatment"`
	Doctor        string     `json:"doctor"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes"`
	ReminderSent  bool       `json:"reminder_sent"`
	ConsentSent   bool       `json:"consent_sent"`
	SyncedToSheet bool       `json:"synced_to_spreadsheet"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PendingCounts aggregates how much automation work is outstanding.
type PendingCounts struct {
	RemindersPending int64 `json:"reminders_pending"`
	ConsentsPending  int64 `json:"consents_pending"`
}
