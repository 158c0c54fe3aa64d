package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/clinova/dentalsync/internal/scheduler"
	"github.com/clinova/dentalsync/internal/sync"
	"github.com/clinova/dentalsync/pkg/logging"
)

type syncTrigger interface {
	TriggerSync(ctx context.Context) (*sync.PassResult, error)
}

type syncStatus interface {
	Phase() sync.Phase
	LastResult() *sync.PassResult
}

// SyncHandler exposes the manual sync trigger and the pass status read.
type SyncHandler struct {
	trigger syncTrigger
	status  syncStatus
	logger  *logging.Logger
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(trigger syncTrigger, status syncStatus, logger *logging.Logger) *SyncHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncHandler{trigger: trigger, status: status, logger: logger}
}

// Run handles POST /sync/run. It executes one pass inline through the same
// path the scheduler uses; an in-flight pass yields 409 rather than queueing.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.trigger.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "a sync pass is already running")
			return
		}
		h.logger.Error("manual sync trigger failed", "error", err)
		// A partially failed pass still produced a result worth returning.
		if result != nil {
			writeJSON(w, http.StatusOK, result)
			return
		}
		writeError(w, http.StatusInternalServerError, "sync pass failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"phase": h.status.Phase(),
		"last":  h.status.LastResult(),
	})
}
