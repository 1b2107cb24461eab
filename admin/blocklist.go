package admin

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giantswarm/sentinel/internal/httperr"
)

type blockRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
	TTL    string `json:"ttl,omitempty"` // Go duration; empty blocks until removed
}

func (h *Handler) listBlocked(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"blocked": h.sentinel.Detector().BlockedIPs()})
}

func (h *Handler) blockIP(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httperr.Write(w, httperr.InvalidRequest("malformed JSON body"))
		return
	}
	if _, err := netip.ParseAddr(req.IP); err != nil {
		httperr.Write(w, httperr.InvalidRequest("ip must be an IPv4 or IPv6 address"))
		return
	}
	if req.Reason == "" {
		req.Reason = "admin"
	}

	var ttl time.Duration
	if req.TTL != "" {
		var err error
		if ttl, err = time.ParseDuration(req.TTL); err != nil || ttl <= 0 {
			httperr.Write(w, httperr.InvalidRequest("ttl must be a positive duration"))
			return
		}
	}

	h.sentinel.Detector().BlockIPFor(req.IP, req.Reason, ttl)
	writeJSON(w, http.StatusCreated, map[string]any{"ip": req.IP, "reason": req.Reason, "ttl": req.TTL})
}

func (h *Handler) unblockIP(w http.ResponseWriter, r *http.Request) {
	if !h.sentinel.Detector().UnblockIP(chi.URLParam(r, "ip")) {
		httperr.Write(w, httperr.NotFound("address is not blocked"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detectorStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sentinel.Detector().Stats())
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	res := h.sentinel.Reaper().SweepOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions_removed": res.SessionsRemoved,
		"counters_removed": res.CountersRemoved,
		"duration":         res.Duration.String(),
	})
}
