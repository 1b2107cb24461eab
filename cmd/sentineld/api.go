package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giantswarm/sentinel"
	"github.com/giantswarm/sentinel/internal/httperr"
	"github.com/giantswarm/sentinel/middleware"
)

// maxBodyBytes bounds API request bodies.
const maxBodyBytes = 1 << 16

type loginRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	UserRole string `json:"user_role"`
	Success  bool   `json:"success"`
}

type accessRequest struct {
	UserID       string `json:"user_id"`
	Resource     string `json:"resource"`
	RequiredRole string `json:"required_role"`
	ActualRole   string `json:"actual_role"`
}

type metadataRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// api is the surface an auth backend talks to.
type api struct {
	sentinel *sentinel.Sentinel
	logger   *slog.Logger
}

// newAPIRouter returns the API routes wrapped in the request middleware.
func newAPIRouter(s *sentinel.Sentinel, logger *slog.Logger) http.Handler {
	a := &api{sentinel: s, logger: logger}

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", a.login)
		r.Post("/access", a.access)
		r.Get("/sessions/{user_id}/{session_id}", a.getSession)
		r.Delete("/sessions/{user_id}/{session_id}", a.logout)
		r.Put("/sessions/{user_id}/{session_id}/metadata", a.setMetadata)
	})

	return s.Middleware().Handler(r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		httperr.Write(w, httperr.InvalidRequest("malformed JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httperr.Write(w, httperr.InvalidRequest("user_id is required"))
		return
	}

	res := a.sentinel.LoginAttempt(sentinel.LoginAttempt{
		UserID:    req.UserID,
		UserName:  req.UserName,
		UserRole:  req.UserRole,
		IPAddress: middleware.ClientIP(r.Context()),
		UserAgent: r.UserAgent(),
		Success:   req.Success,
	})

	switch {
	case res.Blocked:
		httperr.Write(w, httperr.AccessDenied("client address is blocked"))
	case res.Allowed:
		cookie := a.sentinel.Config().Sessions.Cookie.HTTPCookie(res.Session.ID, res.Session.ExpiresAt)
		http.SetCookie(w, cookie)
		writeJSON(w, http.StatusOK, res)
	default:
		writeJSON(w, http.StatusUnauthorized, res)
	}
}

func (a *api) access(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	granted := a.sentinel.AuthorizeAccess(req.UserID, req.Resource, req.RequiredRole, req.ActualRole)
	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sentinel.Sessions().GetSession(chi.URLParam(r, "user_id"), chi.URLParam(r, "session_id"))
	if !ok {
		httperr.Write(w, httperr.NotFound("session not found or expired"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	if !a.sentinel.Sessions().InvalidateSession(chi.URLParam(r, "user_id"), chi.URLParam(r, "session_id")) {
		httperr.Write(w, httperr.NotFound("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		httperr.Write(w, httperr.InvalidRequest("key is required"))
		return
	}
	if !a.sentinel.Sessions().SetMetadata(chi.URLParam(r, "user_id"), chi.URLParam(r, "session_id"), req.Key, req.Value) {
		httperr.Write(w, httperr.NotFound("session not found or expired"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
