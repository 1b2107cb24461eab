package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/giantswarm/sentinel"
)

// Handler serves the admin API for one Sentinel.
type Handler struct {
	sentinel *sentinel.Sentinel
	logger   *slog.Logger
}

// NewHandler creates the admin handler.
func NewHandler(s *sentinel.Sentinel, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sentinel: s, logger: logger}
}

// NewRouter registers the admin routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/admin/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.listSessions)
			r.Get("/stats", h.sessionStats)
			r.Get("/{user_id}", h.userSessions)
			r.Delete("/{user_id}", h.invalidateUserSessions)
			r.Get("/{user_id}/{session_id}/uptime", h.sessionUptime)
			r.Delete("/{user_id}/{session_id}", h.invalidateSession)
		})

		r.Route("/threats", func(r chi.Router) {
			r.Get("/", h.listThreats)
			r.Get("/stats", h.threatStats)
			r.Get("/{id}", h.getThreat)
			r.Patch("/{id}", h.updateThreat)
		})

		r.Route("/blocklist", func(r chi.Router) {
			r.Get("/", h.listBlocked)
			r.Post("/", h.blockIP)
			r.Delete("/{ip}", h.unblockIP)
		})

		r.Get("/detector/stats", h.detectorStats)

		r.Route("/activity", func(r chi.Router) {
			r.Get("/", h.listActivity)
			r.Get("/stats", h.activityStats)
			r.Get("/export", h.exportActivity)
			r.Delete("/", h.clearActivity)
		})

		r.Post("/reaper/sweep", h.sweep)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
