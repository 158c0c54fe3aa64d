// Package scheduler owns the background cadence: periodic sync passes and the
// per-minute automation tick. Manual triggers share the exact same code path
// as scheduled ones.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	appsync "github.com/clinova/dentalsync/internal/sync"
	"github.com/clinova/dentalsync/pkg/logging"
)

// ErrSyncInProgress is returned when a trigger arrives while a pass is running.
var ErrSyncInProgress = errors.New("scheduler: sync pass already in progress")

type syncRunner interface {
	RunPass(ctx context.Context) (*appsync.PassResult, error)
}

type automationTicker interface {
	Tick(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the sync loop and the automation loop until its context is
// cancelled. Overlapping sync triggers are dropped, never queued: if a pass is
// still running when the next interval (or a manual request) fires, that
// trigger is discarded and the running pass finishes undisturbed.
type Scheduler struct {
	runner       syncRunner
	engine       automationTicker
	syncInterval time.Duration
	logger       *logging.Logger

	syncMu sync.Mutex
}

// Config wires a Scheduler. Engine is optional; without it only the sync loop
// runs.
type Config struct {
	Runner       syncRunner
	Engine       automationTicker
	SyncInterval time.Duration
	Logger       *logging.Logger
}

// New creates a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("scheduler: sync runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		runner:       cfg.Runner,
		engine:       cfg.Engine,
		syncInterval: interval,
		logger:       logger,
	}, nil
}

// Start launches the background loops and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runSyncLoop(ctx)
	}()

	if s.engine != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runAutomationLoop(ctx)
		}()
	}

	wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runSyncLoop(ctx context.Context) {
	s.logger.Info("sync loop started", "interval", s.syncInterval.String())

	// First pass fires immediately so a fresh deploy does not wait a full
	// interval to catch up.
	if _, err := s.TriggerSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("initial sync pass failed", "error", err)
	}

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.TriggerSync(ctx); err != nil {
				if errors.Is(err, ErrSyncInProgress) {
					s.logger.Warn("sync pass still running; dropping trigger")
					continue
				}
				if !errors.Is(err, context.Canceled) {
					s.logger.Error("scheduled sync pass failed", "error", err)
				}
			}
		}
	}
}

// TriggerSync runs one sync pass now. Both the ticker and the manual HTTP
// trigger land here, so they cannot diverge. Returns ErrSyncInProgress when a
// pass is already running.
func (s *Scheduler) TriggerSync(ctx context.Context) (*appsync.PassResult, error) {
	if !s.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.syncMu.Unlock()

	return s.runner.RunPass(ctx)
}

func (s *Scheduler) runAutomationLoop(ctx context.Context) {
	s.logger.Info("automation loop started")

	// Align the first tick to the next minute boundary so HH:MM matching
	// evaluates each minute exactly once.
	now := time.Now()
	wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	select {
	case <-ctx.Done():
		return
	case <-time.After(wait):
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.tickAutomation(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.tickAutomation(ctx, t)
		}
	}
}

func (s *Scheduler) tickAutomation(ctx context.Context, now time.Time) {
	sent, err := s.engine.Tick(ctx, now)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("automation tick failed", "error", err)
	}
	if sent > 0 {
		s.logger.Info("automation tick sent messages", "count", sent)
	}
}
