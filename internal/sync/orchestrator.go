package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/clinova/dentalsync/internal/appointments"
	"github.com/clinova/dentalsync/internal/contacts"
	"github.com/clinova/dentalsync/internal/legacy"
	"github.com/clinova/dentalsync/internal/observability/metrics"
	"github.com/clinova/dentalsync/pkg/logging"
)

var syncTracer = otel.Tracer("dentalsync/sync")

// Phase names the stage a pass is in, for the status read endpoint.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFetching    Phase = "fetching"
	PhaseNormalizing Phase = "normalizing"
	PhaseResolving   Phase = "resolving"
	PhaseClassifying Phase = "classifying"
	PhaseWriting     Phase = "writing"
)

// PassStatus is the aggregate outcome of one sync pass.
type PassStatus string

const (
	PassCompleted       PassStatus = "completed"
	PassPartiallyFailed PassStatus = "partially_failed"
	PassFailed          PassStatus = "failed"
)

// RecordOutcome is the per-record result accumulated across a pass. One
// record's failure never aborts the pass.
type RecordOutcome struct {
	LegacyID     string   `json:"legacy_id"`
	Decision     Decision `json:"decision"`
	SheetWritten bool     `json:"sheet_written"`
	Created      bool     `json:"created"`
	Error        string   `json:"error,omitempty"`
}

// PassResult summarizes a completed sync pass.
type PassResult struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     PassStatus      `json:"status"`
	Total      int             `json:"total"`
	Created    int             `json:"created"`
	Updated    int             `json:"updated"`
	Failed     int             `json:"failed"`
	Outcomes   []RecordOutcome `json:"outcomes"`
}

type legacySource interface {
	FetchRecent(ctx context.Context, limit int) ([]legacy.Row, error)
}

type ledger interface {
	ReadAll(ctx context.Context) ([][]string, error)
	AppendRow(ctx context.Context, values []string) error
	UpdateRow(ctx context.Context, rowNumber int, values []string) error
}

type appointmentStore interface {
	GetByLegacyID(ctx context.Context, legacyID string) (*appointments.Appointment, error)
	FindByPhoneAndTime(ctx context.Context, phone string, scheduledAt time.Time) (*appointments.Appointment, error)
	Create(ctx context.Context, a *appointments.Appointment) error
	UpdateFromSync(ctx context.Context, a *appointments.Appointment) error
	MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

type contactStore interface {
	Resolve(ctx context.Context, fullName, phone string) (*contacts.Contact, error)
	Create(ctx context.Context, c *contacts.Contact) error
}

// Orchestrator runs one sync pass: fetch → normalize → resolve → classify →
// write, independently per record. The scheduled trigger and the manual
// trigger share RunPass; there is no duplicated code path.
type Orchestrator struct {
	source      legacySource
	ledger      ledger
	appts       appointmentStore
	contacts    contactStore
	normalizer  *Normalizer
	logger      *logging.Logger
	metrics     *metrics.SyncMetrics
	loc         *time.Location
	batchSize   int
	recordDelay time.Duration

	mu    sync.Mutex
	phase Phase
	last  *PassResult
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Source      legacySource
	Ledger      ledger
	Appts       appointmentStore
	Contacts    contactStore
	Normalizer  *Normalizer
	Logger      *logging.Logger
	Metrics     *metrics.SyncMetrics
	Location    *time.Location
	BatchSize   int
	RecordDelay time.Duration
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Source == nil {
		return nil, errors.New("sync: orchestrator requires a legacy source")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("sync: orchestrator requires a ledger adapter")
	}
	if cfg.Appts == nil || cfg.Contacts == nil {
		return nil, errors.New("sync: orchestrator requires local stores")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = NewNormalizer(loc, logger)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}
	return &Orchestrator{
		source:      cfg.Source,
		ledger:      cfg.Ledger,
		appts:       cfg.Appts,
		contacts:    cfg.Contacts,
		normalizer:  normalizer,
		logger:      logger,
		metrics:     cfg.Metrics,
		loc:         loc,
		batchSize:   batch,
		recordDelay: cfg.RecordDelay,
		phase:       PhaseIdle,
	}, nil
}

// Phase returns the stage the in-flight pass is in.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// LastResult returns the most recent pass result, or nil before the first pass.
func (o *Orchestrator) LastResult() *PassResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// RunPass executes one complete sync pass and returns its aggregate result.
func (o *Orchestrator) RunPass(ctx context.Context) (*PassResult, error) {
	ctx, span := syncTracer.Start(ctx, "sync.pass")
	defer span.End()

	result := &PassResult{StartedAt: time.Now().UTC()}
	defer func() {
		result.FinishedAt = time.Now().UTC()
		o.mu.Lock()
		o.last = result
		o.phase = PhaseIdle
		o.mu.Unlock()
		o.metrics.ObservePass(string(result.Status), result.FinishedAt.Sub(result.StartedAt).Seconds())
	}()

	o.setPhase(PhaseFetching)
	rows, err := o.source.FetchRecent(ctx, o.batchSize)
	if err != nil {
		result.Status = PassFailed
		return result, fmt.Errorf("sync: fetch: %w", err)
	}
	result.Total = len(rows)
	if len(rows) == 0 {
		result.Status = PassCompleted
		return result, nil
	}

	sheetRows, err := o.ledger.ReadAll(ctx)
	if err != nil {
		result.Status = PassFailed
		return result, fmt.Errorf("sync: read ledger: %w", err)
	}

	for i, row := range rows {
		if ctx.Err() != nil {
			result.Status = PassPartiallyFailed
			return result, ctx.Err()
		}
		outcome := o.processRecord(ctx, row, &sheetRows)
		result.Outcomes = append(result.Outcomes, outcome)
		switch {
		case outcome.Error != "":
			result.Failed++
		case outcome.Created:
			result.Created++
		default:
			result.Updated++
		}
		o.metrics.ObserveRecord(string(outcome.Decision), outcome.Error == "")

		// Courtesy throttle between records for downstream rate limits.
		if o.recordDelay > 0 && i < len(rows)-1 {
			select {
			case <-time.After(o.recordDelay):
			case <-ctx.Done():
			}
		}
	}

	switch {
	case result.Failed == result.Total:
		result.Status = PassFailed
	case result.Failed > 0:
		result.Status = PassPartiallyFailed
	default:
		result.Status = PassCompleted
	}

	o.logger.Info("sync: pass finished",
		"status", result.Status,
		"total", result.Total,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
	)
	return result, nil
}

// processRecord runs the normalize→resolve→classify→write pipeline for one
// legacy row. sheetRows is updated in place when a new ledger row is appended
// so later records in the same pass see it.
func (o *Orchestrator) processRecord(ctx context.Context, row legacy.Row, sheetRows *[][]string) RecordOutcome {
	outcome := RecordOutcome{LegacyID: row.ID}

	o.setPhase(PhaseNormalizing)
	rec := o.normalizer.FromLegacy(row)

	o.setPhase(PhaseResolving)
	match := FindAppointmentRow(*sheetRows, rec.PatientNumber, rec.Date, rec.Time)

	o.setPhase(PhaseClassifying)
	outcome.Decision = Classify(rec.CreatedAt, rec.ModifiedAt, match.Found)

	o.setPhase(PhaseWriting)
	cells := rec.SheetRow()
	var sheetErr error
	if match.Found {
		// A found row is overwritten in place even when the classifier says
		// NEW: a freshly created record re-fetched on a later pass must not
		// grow the ledger.
		sheetErr = o.ledger.UpdateRow(ctx, match.Row, cells)
	} else {
		sheetErr = o.ledger.AppendRow(ctx, cells)
		if sheetErr == nil {
			*sheetRows = append(*sheetRows, cells)
		}
	}
	if sheetErr != nil {
		o.logger.Error("sync: ledger write failed", "legacy_id", row.ID, "error", sheetErr)
	} else {
		outcome.SheetWritten = true
	}

	appt, created, err := o.upsertLocal(ctx, rec, outcome.Decision)
	if err != nil {
		outcome.Error = err.Error()
		o.logger.Error("sync: local upsert failed", "legacy_id", row.ID, "error", err)
		return outcome
	}
	outcome.Created = created

	if outcome.SheetWritten {
		if err := o.appts.MarkSynced(ctx, appt.ID, time.Now()); err != nil {
			outcome.Error = err.Error()
		}
	} else if sheetErr != nil {
		// synced_to_spreadsheet stays false; the next pass retries.
		outcome.Error = sheetErr.Error()
	}
	return outcome
}

// upsertLocal creates or refreshes the local appointment. The upsert key is
// the legacy identifier when present, else the phone+date+time heuristic.
func (o *Orchestrator) upsertLocal(ctx context.Context, rec SourceRecord, decision Decision) (*appointments.Appointment, bool, error) {
	scheduledAt, err := rec.ScheduledAt(o.loc)
	if err != nil {
		return nil, false, fmt.Errorf("sync: schedule timestamp: %w", err)
	}

	existing, err := o.lookupLocal(ctx, rec, scheduledAt)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		contact, err := o.resolveOrCreateContact(ctx, rec)
		if err != nil {
			return nil, false, err
		}
		appt := &appointments.Appointment{
			LegacyID:    rec.LegacyID,
			ContactID:   contact.ID,
			ContactName: rec.FullName(),
			Phone:       rec.Phone,
			ScheduledAt: scheduledAt,
			DurationMin: rec.DurationMin,
			Treatment:   rec.Treatment,
			Doctor:      rec.Doctor,
			Status:      appointments.Status(rec.Status),
			Notes:       rec.Notes,
		}
		if err := o.appts.Create(ctx, appt); err != nil {
			return nil, false, err
		}
		return appt, true, nil
	}

	if decision == DecisionModified {
		existing.ContactName = rec.FullName()
		existing.Phone = rec.Phone
		existing.ScheduledAt = scheduledAt
		existing.DurationMin = rec.DurationMin
		existing.Treatment = rec.Treatment
		existing.Doctor = rec.Doctor
		existing.Status = appointments.Status(rec.Status)
		if err := o.appts.UpdateFromSync(ctx, existing); err != nil {
			return nil, false, err
		}
	}
	return existing, false, nil
}

func (o *Orchestrator) lookupLocal(ctx context.Context, rec SourceRecord, scheduledAt time.Time) (*appointments.Appointment, error) {
	if rec.LegacyID != "" {
		appt, err := o.appts.GetByLegacyID(ctx, rec.LegacyID)
		if err == nil {
			return appt, nil
		}
		if !errors.Is(err, appointments.ErrNotFound) {
			return nil, err
		}
	}
	appt, err := o.appts.FindByPhoneAndTime(ctx, rec.Phone, scheduledAt)
	if err == nil {
		return appt, nil
	}
	if errors.Is(err, appointments.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

func (o *Orchestrator) resolveOrCreateContact(ctx context.Context, rec SourceRecord) (*contacts.Contact, error) {
	contact, err := o.contacts.Resolve(ctx, rec.FullName(), rec.Phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, contacts.ErrNotFound) {
		return nil, err
	}
	contact = &contacts.Contact{
		FullName: rec.FullName(),
		Phone:    rec.Phone,
		Source:   contacts.SourceImported,
	}
	if err := o.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	o.logger.Info("sync: imported new contact", "name", contact.FullName)
	return contact, nil
}
