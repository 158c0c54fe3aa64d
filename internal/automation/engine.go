package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/dentalsync/internal/appointments"
	"github.com/clinova/dentalsync/internal/observability/metrics"
	"github.com/clinova/dentalsync/pkg/logging"
)

// Sender abstracts the outbound messaging path.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Journal records every outbound attempt for auditing. It is bookkeeping
// only; the sent-flags on the appointment are what enforce idempotence.
type Journal interface {
	Record(ctx context.Context, appointmentID uuid.UUID, triggerType, status string) error
}

type ruleSource interface {
	ListEnabled(ctx context.Context) ([]Rule, error)
}

type appointmentSource interface {
	ListRemindersDue(ctx context.Context, dayStart, dayEnd time.Time) ([]appointments.Appointment, error)
	ListConsentsDue(ctx context.Context, dayStart, dayEnd time.Time) ([]appointments.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
	MarkConsentSent(ctx context.Context, id uuid.UUID) error
}

// Engine evaluates enabled automation rules once per minute. A rule fires
// when its trigger time equals the current clinic-local minute, exact string
// match on HH:MM. Re-running a tick for the same minute with the same data
// never re-sends: the sent-flags gate every message.
type Engine struct {
	rules   ruleSource
	appts   appointmentSource
	sender  Sender
	journal Journal
	logger  *logging.Logger
	metrics *metrics.AutomationMetrics
	loc     *time.Location
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Rules    ruleSource
	Appts    appointmentSource
	Sender   Sender
	Journal  Journal
	Logger   *logging.Logger
	Metrics  *metrics.AutomationMetrics
	Location *time.Location
}

// NewEngine creates an automation engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Rules == nil || cfg.Appts == nil {
		return nil, errors.New("automation: engine requires rule and appointment stores")
	}
	if cfg.Sender == nil {
		return nil, errors.New("automation: engine requires a sender")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		rules:   cfg.Rules,
		appts:   cfg.Appts,
		sender:  cfg.Sender,
		journal: cfg.Journal,
		logger:  logger,
		metrics: cfg.Metrics,
		loc:     loc,
	}, nil
}

// Tick evaluates every enabled rule against the given wall-clock instant and
// returns how many messages went out. A rule failing to evaluate (missing
// template, store error) fails that rule only; the tick carries on.
func (e *Engine) Tick(ctx context.Context, now time.Time) (int, error) {
	e.metrics.ObserveTick()

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("automation: list rules: %w", err)
	}

	minute := now.In(e.loc).Format("15:04")
	sent := 0
	var firstErr error
	for _, rule := range rules {
		if rule.TriggerTime != minute {
			continue
		}
		n, err := e.evaluateRule(ctx, rule, now)
		sent += n
		if err != nil {
			e.logger.Error("automation: rule evaluation failed",
				"rule", rule.Name, "trigger_type", rule.TriggerType, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return sent, firstErr
}

func (e *Engine) evaluateRule(ctx context.Context, rule Rule, now time.Time) (int, error) {
	if strings.TrimSpace(rule.Template) == "" {
		return 0, fmt.Errorf("automation: rule %q has no template", rule.Name)
	}

	dayStart, dayEnd := tomorrowWindow(now, e.loc)

	switch rule.TriggerType {
	case TriggerDayBefore:
		due, err := e.appts.ListRemindersDue(ctx, dayStart, dayEnd)
		if err != nil {
			return 0, err
		}
		return e.sendAll(ctx, rule, due, e.appts.MarkReminderSent), nil

	case TriggerSurgery:
		due, err := e.appts.ListConsentsDue(ctx, dayStart, dayEnd)
		if err != nil {
			return 0, err
		}
		filtered := due[:0:0]
		for _, appt := range due {
			if MatchesKeywords(appt.Treatment, rule.Keywords) {
				filtered = append(filtered, appt)
			}
		}
		return e.sendAll(ctx, rule, filtered, e.appts.MarkConsentSent), nil

	default:
		return 0, fmt.Errorf("automation: unknown trigger type %q", rule.TriggerType)
	}
}

// sendAll renders and sends the rule's message to each due appointment. The
// flag flips only after the send call reports success; a failed send leaves
// it false so a later run or a manual retry can still attempt it.
func (e *Engine) sendAll(ctx context.Context, rule Rule, due []appointments.Appointment, mark func(context.Context, uuid.UUID) error) int {
	sent := 0
	for _, appt := range due {
		body := RenderTemplate(rule.Template, appt, e.loc)

		if err := e.sender.SendText(ctx, appt.Phone, body); err != nil {
			e.logger.Error("automation: send failed",
				"appointment_id", appt.ID, "phone", appt.Phone, "rule", rule.Name, "error", err)
			e.metrics.ObserveSend(string(rule.TriggerType), "failed")
			e.recordJournal(ctx, appt.ID, rule.TriggerType, "failed")
			continue
		}

		if err := mark(ctx, appt.ID); err != nil {
			// The message went out but the flag did not stick. At-least-once
			// beats silently losing a reminder; log loudly and move on.
			e.logger.Error("automation: sent but flag update failed",
				"appointment_id", appt.ID, "rule", rule.Name, "error", err)
		}
		e.metrics.ObserveSend(string(rule.TriggerType), "sent")
		e.recordJournal(ctx, appt.ID, rule.TriggerType, "sent")
		sent++

		e.logger.Info("automation: message sent",
			"appointment_id", appt.ID, "rule", rule.Name, "trigger_type", rule.TriggerType)
	}
	return sent
}

func (e *Engine) recordJournal(ctx context.Context, id uuid.UUID, trigger TriggerType, status string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, id, string(trigger), status); err != nil {
		e.logger.Warn("automation: journal write failed", "appointment_id", id, "error", err)
	}
}

// tomorrowWindow returns [00:00, 24:00) of the next clinic-local day.
func tomorrowWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return start, start.AddDate(0, 0, 1)
}
