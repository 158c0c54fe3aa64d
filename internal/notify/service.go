package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/clinova/dentalsync/pkg/logging"
)

// UrgentAlert carries what staff need to act on a red-urgency conversation.
type UrgentAlert struct {
	SessionID  string
	Phone      string
	Message    string
	PainLevel  *int
	Specialty  string
	ReceivedAt time.Time
}

// Service fans urgent alerts out to the configured staff recipients.
type Service struct {
	email      EmailSender
	recipients []string
	clinicName string
	logger     *logging.Logger
}

// NewService creates an alert service. A nil service is safe to call.
func NewService(email EmailSender, recipients []string, clinicName string, logger *logging.Logger) *Service {
	if email == nil || len(recipients) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clinicName == "" {
		clinicName = "DentalSync"
	}
	return &Service{
		email:      email,
		recipients: recipients,
		clinicName: clinicName,
		logger:     logger,
	}
}

// AlertUrgent emails every configured recipient about a red-urgency
// conversation. Partial delivery returns an error but does not stop the
// remaining recipients.
func (s *Service) AlertUrgent(ctx context.Context, alert UrgentAlert) error {
	if s == nil {
		return nil
	}

	painInfo := ""
	if alert.PainLevel != nil {
		painInfo = fmt.Sprintf("\nPain level: %d/10", *alert.PainLevel)
	}
	specialtyInfo := ""
	if alert.Specialty != "" {
		specialtyInfo = fmt.Sprintf("\nSpecialty: %s", alert.Specialty)
	}

	subject := fmt.Sprintf("🔴 Urgent patient message - %s", alert.Phone)
	body := fmt.Sprintf(`A patient message was classified as urgent and needs an immediate callback.

Phone: %s
Received: %s%s%s

Message:
%s

— %s`, alert.Phone, alert.ReceivedAt.Format("January 2, 2006 at 15:04"), painInfo, specialtyInfo, alert.Message, s.clinicName)

	var failed int
	for _, recipient := range s.recipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("urgent alert email failed", "error", err, "to", recipient, "session_id", alert.SessionID)
			failed++
			continue
		}
		s.logger.Info("urgent alert email sent", "to", recipient, "session_id", alert.SessionID)
	}
	if failed > 0 {
		return fmt.Errorf("notify: %d urgent alert(s) failed", failed)
	}
	return nil
}
