package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinova/dentalsync/internal/appointments"
	"github.com/clinova/dentalsync/internal/automation"
	"github.com/clinova/dentalsync/pkg/logging"
)

// AutomationHandler exposes rule CRUD and the operational helpers around the
// automation engine.
type AutomationHandler struct {
	rules  *automation.Store
	appts  *appointments.Store
	loc    *time.Location
	logger *logging.Logger
}

// NewAutomationHandler creates an automation handler.
func NewAutomationHandler(rules *automation.Store, appts *appointments.Store, loc *time.Location, logger *logging.Logger) *AutomationHandler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AutomationHandler{rules: rules, appts: appts, loc: loc, logger: logger}
}

type createRuleRequest struct {
	Name        string   `json:"name"`
	TriggerType string   `json:"trigger_type"`
	TriggerTime string   `json:"trigger_time"`
	Template    string   `json:"template"`
	Keywords    []string `json:"keywords"`
	Enabled     *bool    `json:"enabled"`
}

// CreateRule handles POST /automation/rules.
func (h *AutomationHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Template == "" {
		writeError(w, http.StatusBadRequest, "name and template are required")
		return
	}
	trigger := automation.TriggerType(req.TriggerType)
	if trigger != automation.TriggerDayBefore && trigger != automation.TriggerSurgery {
		writeError(w, http.StatusBadRequest, "unknown trigger_type")
		return
	}
	if _, err := time.Parse("15:04", req.TriggerTime); err != nil {
		writeError(w, http.StatusBadRequest, "trigger_time must be HH:MM")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &automation.Rule{
		Name:        req.Name,
		TriggerType: trigger,
		TriggerTime: req.TriggerTime,
		Enabled:     enabled,
		Template:    req.Template,
		Keywords:    req.Keywords,
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		h.logger.Error("create rule failed", "error", err, "name", req.Name)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetRuleEnabled handles PUT /automation/rules/{ruleID}/enabled.
func (h *AutomationHandler) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.rules.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		h.logger.Error("set rule enabled failed", "error", err, "rule_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": req.Enabled})
}

// ListRules handles GET /automation/rules. Only enabled rules are returned;
// disabled rules are invisible to the engine as well.
func (h *AutomationHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListEnabled(r.Context())
	if err != nil {
		h.logger.Error("list rules failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

// PendingCounts handles GET /automation/pending-counts: how many of
// tomorrow's appointments still await their reminder or consent notice.
func (h *AutomationHandler) PendingCounts(w http.ResponseWriter, r *http.Request) {
	local := time.Now().In(h.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.loc).AddDate(0, 0, 1)
	dayEnd := dayStart.AddDate(0, 0, 1)

	counts, err := h.appts.CountPending(r.Context(), dayStart, dayEnd)
	if err != nil {
		h.logger.Error("pending counts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count pending work")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

type resetFlagsRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ResetFlags handles POST /automation/reset-flags, the staff escape hatch for
// re-sending a window after a template mistake.
func (h *AutomationHandler) ResetFlags(w http.ResponseWriter, r *http.Request) {
	var req resetFlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.From.IsZero() || req.To.IsZero() || !req.To.After(req.From) {
		writeError(w, http.StatusBadRequest, "from and to must form a valid window")
		return
	}

	n, err := h.appts.ResetSentFlags(r.Context(), req.From, req.To)
	if err != nil {
		h.logger.Error("reset sent flags failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset flags")
		return
	}
	h.logger.Info("sent flags reset", "count", n, "from", req.From, "to", req.To)
	writeJSON(w, http.StatusOK, map[string]int64{"reset": n})
}
