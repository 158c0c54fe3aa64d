package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clinova/dentalsync/internal/triage"
	"github.com/clinova/dentalsync/pkg/logging"
)

// TriageHandler exposes the inbound message webhook and the staff dashboard.
type TriageHandler struct {
	service *triage.Service
	store   *triage.Store
	logger  *logging.Logger
}

// NewTriageHandler creates a triage handler.
func NewTriageHandler(service *triage.Service, store *triage.Store, logger *logging.Logger) *TriageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TriageHandler{service: service, store: store, logger: logger}
}

type inboundRequest struct {
	SessionID string `json:"session_id"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

// Inbound handles POST /messages/inbound, the channel gateway webhook.
func (h *TriageHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		// Fall back to the phone as session key; channels without session
		// identifiers are keyed per patient number.
		req.SessionID = strings.TrimSpace(req.Phone)
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id or phone is required")
		return
	}

	outcome, err := h.service.HandleInbound(r.Context(), req.SessionID, req.Phone, req.Message)
	if err != nil {
		h.logger.Error("inbound handling failed", "error", err, "session_id", req.SessionID)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    outcome.Status.SessionID,
		"urgency_color": outcome.Status.UrgencyColor,
		"pain_level":    outcome.Status.PainLevel,
		"specialty":     outcome.Status.NeededSpecialty,
		"action":        outcome.Action,
		"response":      outcome.Response,
	})
}

// Queue handles GET /triage/queue for the staff dashboard.
func (h *TriageHandler) Queue(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	pending, err := h.store.ListPending(r.Context(), limit)
	if err != nil {
		h.logger.Error("list pending conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": pending, "count": len(pending)})
}

type resolveRequest struct {
	Doctor string `json:"doctor"`
}

// Resolve handles POST /triage/{sessionID}/resolve.
func (h *TriageHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	var req resolveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Resolve(r.Context(), sessionID, req.Doctor); err != nil {
		if errors.Is(err, triage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("resolve failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to resolve conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
