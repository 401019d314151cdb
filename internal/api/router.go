package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hmemcore/hmem/internal/engine"
	"github.com/hmemcore/hmem/internal/tuning"
)

// NewRouter creates the Chi router exposing the engine's hook surface plus
// observability and health endpoints. rateRPM/rateBurst configure the
// per-agent rate limiter guarding the authenticated routes; rateRPM <= 0
// disables rate limiting entirely.
func NewRouter(eng *engine.Engine, recorder *tuning.Recorder, jwtSigningKey string, rateRPM, rateBurst int, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(CORS())
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(eng)
	hookH := NewHookHandler(eng)
	obsH := NewObservabilityHandler(recorder)

	r.Get("/health", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(jwtSigningKey))
		if rateRPM > 0 {
			r.Use(NewAgentRateLimiter(rateRPM, rateBurst, 10*time.Minute).Middleware)
		}

		r.Route("/hooks", func(r chi.Router) {
			r.Post("/before-prompt-build", hookH.BeforePromptBuild)
			r.Post("/tool-result-persist", hookH.ToolResultPersist)
			r.Post("/agent-end/{sessionId}", hookH.AgentEnd)
			r.Post("/cron-weekly", hookH.CronWeekly)
		})

		r.Route("/memory", func(r chi.Router) {
			r.Post("/autonomous", hookH.AutonomousMemory)
			r.Post("/active-retrieval", hookH.ActiveRetrieval)
		})

		r.Route("/tools", func(r chi.Router) {
			r.Post("/compact", hookH.Compact)
		})

		r.Route("/observability", func(r chi.Router) {
			r.Get("/stats", obsH.Stats)
		})
	})

	return r
}
