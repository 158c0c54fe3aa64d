package handlers

import (
	"net/http"
	"strconv"

	"github.com/clinova/dentalsync/internal/messaging"
	"github.com/clinova/dentalsync/pkg/logging"
)

// MessagesHandler exposes the outbound delivery log.
type MessagesHandler struct {
	log    *messaging.MessageLog
	logger *logging.Logger
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(log *messaging.MessageLog, logger *logging.Logger) *MessagesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MessagesHandler{log: log, logger: logger}
}

// Recent handles GET /messages/log.
func (h *MessagesHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.log.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list message log failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load message log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": entries, "count": len(entries)})
}
