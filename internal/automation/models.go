package automation

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType selects which evaluation a rule runs on its matched minute.
type TriggerType string

const (
	// TriggerDayBefore sends a reminder for appointments scheduled tomorrow.
	TriggerDayBefore TriggerType = "appointment_day_before"
	// TriggerSurgery sends a consent notice for tomorrow's surgical treatments.
	TriggerSurgery TriggerType = "surgery_reminder"
)

// Rule is a staff-authored automation declaration. Rules are created and
// edited through the CRUD surface only; the sync path never writes them.
type Rule struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	TriggerType TriggerType `json:"trigger_type"`
	TriggerTime string      `json:"trigger_time"` // "HH:MM", clinic-local
	Enabled     bool        `json:"enabled"`
	Template    string      `json:"template"`
	Keywords    []string    `json:"keywords,omitempty"` // treatment filter, surgery rules
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
