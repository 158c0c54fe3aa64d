// Package router assembles the chi route tree.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinova/dentalsync/internal/api/handlers"
	httpmiddleware "github.com/clinova/dentalsync/internal/http/middleware"
	"github.com/clinova/dentalsync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	SyncHandler        *handlers.SyncHandler
	TriageHandler      *handlers.TriageHandler
	AutomationHandler  *handlers.AutomationHandler
	MessagesHandler    *handlers.MessagesHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	InboundRateLimit   float64
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Inbound webhook from the channel gateway. Rate limited because the
	// endpoint is reachable from outside.
	if cfg.TriageHandler != nil {
		limit := cfg.InboundRateLimit
		if limit <= 0 {
			limit = 10
		}
		r.With(httpmiddleware.RateLimit(limit, int(limit)*2)).
			Post("/messages/inbound", cfg.TriageHandler.Inbound)

		r.Route("/triage", func(r chi.Router) {
			r.Get("/queue", cfg.TriageHandler.Queue)
			r.Post("/{sessionID}/resolve", cfg.TriageHandler.Resolve)
		})
	}

	if cfg.SyncHandler != nil {
		r.Route("/sync", func(r chi.Router) {
			r.Post("/run", cfg.SyncHandler.Run)
			r.Get("/status", cfg.SyncHandler.Status)
		})
	}

	if cfg.AutomationHandler != nil {
		r.Route("/automation", func(r chi.Router) {
			r.Post("/rules", cfg.AutomationHandler.CreateRule)
			r.Get("/rules", cfg.AutomationHandler.ListRules)
			r.Put("/rules/{ruleID}/enabled", cfg.AutomationHandler.SetRuleEnabled)
			r.Get("/pending-counts", cfg.AutomationHandler.PendingCounts)
			r.Post("/reset-flags", cfg.AutomationHandler.ResetFlags)
		})
	}

	if cfg.MessagesHandler != nil {
		r.Get("/messages/log", cfg.MessagesHandler.Recent)
	}

	return r
}
