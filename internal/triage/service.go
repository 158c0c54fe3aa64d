package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/clinova/dentalsync/internal/notify"
	"github.com/clinova/dentalsync/internal/observability/metrics"
	"github.com/clinova/dentalsync/pkg/logging"
)

// statusStore is the persistence surface the service needs.
type statusStore interface {
	Get(ctx context.Context, sessionID string) (*ConversationStatus, error)
	Upsert(ctx context.Context, cs *ConversationStatus) error
	Resolve(ctx context.Context, sessionID, doctor string) error
}

// StaffAlerter notifies the clinic team about red-urgency conversations.
type StaffAlerter interface {
	AlertUrgent(ctx context.Context, alert notify.UrgentAlert) error
}

// Service ties the classifier, conversation store, dashboard queue and staff
// alerts together for one inbound message at a time.
type Service struct {
	classifier *Classifier
	store      statusStore
	queue      *DashboardQueue
	detector   SpecialtyDetector
	alerter    StaffAlerter
	metrics    *metrics.TriageMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// ServiceConfig wires the triage service dependencies. Queue, detector,
// alerter and metrics are optional.
type ServiceConfig struct {
	Classifier *Classifier
	Store      statusStore
	Queue      *DashboardQueue
	Detector   SpecialtyDetector
	Alerter    StaffAlerter
	Metrics    *metrics.TriageMetrics
	Logger     *logging.Logger
}

// NewService creates a triage service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("triage: store is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		classifier: cfg.Classifier,
		store:      cfg.Store,
		queue:      cfg.Queue,
		detector:   cfg.Detector,
		alerter:    cfg.Alerter,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        time.Now,
	}, nil
}

// InboundOutcome is returned to the channel adapter that received the message.
type InboundOutcome struct {
	Status   *ConversationStatus
	Action   Action
	Response string
}

// HandleInbound classifies one patient message and records the updated
// conversation state. Urgency never improves here: an existing color that
// outranks the fresh classification wins, and only staff resolve moves a
// conversation to green.
func (s *Service) HandleInbound(ctx context.Context, sessionID, phone, message string) (*InboundOutcome, error) {
	ctx, span := triageTracer.Start(ctx, "triage.handle_inbound")
	defer span.End()
	span.SetAttributes(attribute.String("triage.session_id", sessionID))

	if sessionID == "" {
		return nil, errors.New("triage: session id is required")
	}

	result := s.classifier.Classify(ctx, message)

	// The LLM assist only fills a missing specialty. A failure here is an
	// inconvenience, not a reason to drop the message.
	if result.Specialty == "" && s.detector != nil {
		specialty, err := s.detector.DetectSpecialty(ctx, message)
		if err != nil {
			s.logger.Warn("specialty detection failed, continuing without",
				"error", err, "session_id", sessionID)
		} else if specialty != "" {
			result.Specialty = specialty
			if result.Action == ActionProvideInfo || result.Action == ActionOfferBooking {
				result.Action = ActionReferSpecialist
			}
		}
	}

	existing, err := s.store.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("triage: load conversation: %w", err)
	}

	now := s.now().UTC()
	cs := &ConversationStatus{
		SessionID:       sessionID,
		Phone:           phone,
		LastMessage:     message,
		PainLevel:       result.PainLevel,
		UrgencyColor:    result.Color,
		PendingResponse: true,
	}
	if existing != nil {
		cs.CreatedAt = existing.CreatedAt
		cs.AssignedDoctor = existing.AssignedDoctor
		cs.UrgencyColor = Escalate(existing.UrgencyColor, result.Color)
		if cs.PainLevel == nil {
			cs.PainLevel = existing.PainLevel
		}
		if result.Specialty == "" {
			result.Specialty = existing.NeededSpecialty
		}
		if cs.Phone == "" {
			cs.Phone = existing.Phone
		}
	}
	cs.NeededSpecialty = result.Specialty
	cs.StatusDescription = describe(cs.UrgencyColor, result.Specialty)

	if err := s.store.Upsert(ctx, cs); err != nil {
		return nil, err
	}

	if err := s.queue.Push(ctx, sessionID, cs.UrgencyColor, now); err != nil {
		s.logger.Warn("dashboard queue push failed", "error", err, "session_id", sessionID)
	}

	s.metrics.ObserveInbound(string(cs.UrgencyColor))
	s.logger.Info("inbound message triaged",
		"session_id", sessionID,
		"color", cs.UrgencyColor,
		"specialty", result.Specialty,
		"action", result.Action)

	if cs.UrgencyColor == ColorRed && s.alerter != nil {
		alert := notify.UrgentAlert{
			SessionID:  sessionID,
			Phone:      cs.Phone,
			Message:    message,
			PainLevel:  cs.PainLevel,
			Specialty:  result.Specialty,
			ReceivedAt: now,
		}
		if err := s.alerter.AlertUrgent(ctx, alert); err != nil {
			s.logger.Error("urgent staff alert failed", "error", err, "session_id", sessionID)
		}
	}

	return &InboundOutcome{Status: cs, Action: result.Action, Response: result.Response}, nil
}

// Resolve marks a conversation handled by staff and drops it from the queue.
func (s *Service) Resolve(ctx context.Context, sessionID, doctor string) error {
	if err := s.store.Resolve(ctx, sessionID, doctor); err != nil {
		return err
	}
	if err := s.queue.Remove(ctx, sessionID); err != nil {
		s.logger.Warn("dashboard queue remove failed", "error", err, "session_id", sessionID)
	}
	s.logger.Info("conversation resolved", "session_id", sessionID, "doctor", doctor)
	return nil
}

func describe(color Color, specialty string) string {
	switch color {
	case ColorRed:
		return "Dolor severo, llamar de inmediato"
	case ColorBlack:
		return "Solicita cita"
	case ColorYellow:
		return "Dolor moderado, cita prioritaria"
	case ColorGreen:
		return "Resuelto por el equipo"
	default:
		if specialty != "" {
			return "Consulta sobre " + specialty
		}
		return "Consulta general"
	}
}
