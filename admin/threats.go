package admin

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/giantswarm/sentinel/internal/httperr"
	"github.com/giantswarm/sentinel/threat"
)

type updateThreatRequest struct {
	Status           threat.Status `json:"status"`
	MitigationAction string        `json:"mitigation_action"`
}

func (h *Handler) listThreats(w http.ResponseWriter, r *http.Request) {
	f, err := threatFilter(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threats": h.sentinel.Threats().List(f)})
}

func threatFilter(r *http.Request) (threat.Filter, error) {
	q := r.URL.Query()
	var f threat.Filter

	if t := threat.Type(q.Get("type")); t != "" {
		if !slices.Contains(threat.Types, t) {
			return f, httperr.InvalidRequest("unknown threat type")
		}
		f.Type = t
	}
	if raw := q.Get("level"); raw != "" {
		level, err := threat.ParseLevel(raw)
		if err != nil {
			return f, httperr.InvalidRequest("unknown threat level")
		}
		f.Level = level
	}
	if s := threat.Status(q.Get("status")); s != "" {
		if !slices.Contains(threat.Statuses, s) {
			return f, httperr.InvalidRequest("unknown threat status")
		}
		f.Status = s
	}

	var err error
	if f.Since, f.Until, err = parseRange(q); err != nil {
		return f, err
	}
	f.Limit, err = parseLimit(q)
	return f, err
}

func (h *Handler) threatStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sentinel.Threats().Stats())
}

func (h *Handler) getThreat(w http.ResponseWriter, r *http.Request) {
	e, ok := h.sentinel.Threats().Get(chi.URLParam(r, "id"))
	if !ok {
		httperr.Write(w, httperr.NotFound("threat not found"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) updateThreat(w http.ResponseWriter, r *http.Request) {
	var req updateThreatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httperr.Write(w, httperr.InvalidRequest("malformed JSON body"))
		return
	}
	if !req.Status.IsAssignable() {
		httperr.Write(w, httperr.InvalidRequest("status must be one of investigating, mitigated, resolved, false_positive"))
		return
	}

	e, ok := h.sentinel.Threats().UpdateStatus(chi.URLParam(r, "id"), req.Status, req.MitigationAction)
	if !ok {
		httperr.Write(w, httperr.NotFound("threat not found"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}
