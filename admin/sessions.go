package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giantswarm/sentinel/internal/httperr"
)

func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": h.sentinel.Sessions().GetAllActiveSessions()})
}

func (h *Handler) sessionStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sentinel.SessionStats())
}

func (h *Handler) userSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"sessions": h.sentinel.Sessions().GetUserSessions(userID),
	})
}

func (h *Handler) invalidateUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	count := h.sentinel.Sessions().InvalidateAllUserSessions(userID)

	h.logger.Info("Invalidated user sessions via admin API", "user_id", userID, "count", count)
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "invalidated": count})
}

// sessionUptime reads the session without GetSession so that an operator
// looking at it does not renew it.
func (h *Handler) sessionUptime(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	sessionID := chi.URLParam(r, "session_id")

	for _, s := range h.sentinel.Sessions().GetUserSessions(userID) {
		if s.ID == sessionID {
			writeJSON(w, http.StatusOK, h.sentinel.Sessions().CalculateUptime(s))
			return
		}
	}
	httperr.Write(w, httperr.NotFound("session not found"))
}

func (h *Handler) invalidateSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	sessionID := chi.URLParam(r, "session_id")

	if !h.sentinel.Sessions().InvalidateSession(userID, sessionID) {
		httperr.Write(w, httperr.NotFound("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
