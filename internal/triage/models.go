package triage

import (
	"time"
)

// ConversationStatus is one row per distinct inbound conversation, keyed by a
// session identifier derived from the phone number or channel session.
type ConversationStatus struct {
	SessionID         string     `json:"session_id"`
	Phone             string     `json:"phone"`
	LastMessage       string     `json:"last_message"`
	PainLevel         *int       `json:"pain_level,omitempty"`
	UrgencyColor      Color      `json:"urgency_color"`
	StatusDescription string     `json:"status_description"`
	PendingResponse   bool       `json:"pending_response"`
	AssignedDoctor    string     `json:"assigned_doctor,omitempty"`
	NeededSpecialty   string     `json:"needed_specialty,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
