package admin

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/internal/httperr"
)

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	f, err := activityFilter(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": h.sentinel.Activity().GetLogs(f)})
}

func activityFilter(r *http.Request) (activity.Filter, error) {
	q := r.URL.Query()
	f := activity.Filter{
		Category: q.Get("category"),
		UserID:   q.Get("user_id"),
	}

	if raw := q.Get("level"); raw != "" {
		level, err := activity.ParseLevel(raw)
		if err != nil {
			return f, httperr.InvalidRequest("unknown level")
		}
		f.MinLevel = level
	}

	var err error
	if f.Since, f.Until, err = parseRange(q); err != nil {
		return f, err
	}
	f.Limit, err = parseLimit(q)
	return f, err
}

func (h *Handler) activityStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sentinel.Activity().GetLogStats())
}

func (h *Handler) exportActivity(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(activity.FormatJSON)
	}
	format, err := activity.ParseFormat(raw)
	if err != nil {
		httperr.Write(w, exportError(err))
		return
	}

	// The export includes its own audit entry.
	h.sentinel.Activity().LogActivity(activity.CategoryAdmin, activity.ActionLogsExported, activity.Options{
		Details: map[string]any{"format": string(format)},
		Status:  activity.StatusSuccess,
	})

	data, err := h.sentinel.Activity().ExportLogs(format)
	if err != nil {
		h.logger.Error("Failed to export activity log", "format", format, "error", err)
		httperr.Write(w, exportError(err))
		return
	}

	contentType := "application/json"
	if format == activity.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=activity.%s", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func exportError(err error) error {
	if errors.Is(err, activity.ErrUnsupportedFormat) {
		return httperr.New(httperr.CodeUnsupportedFormat, "format must be json or csv", http.StatusBadRequest)
	}
	return err
}

func (h *Handler) clearActivity(w http.ResponseWriter, _ *http.Request) {
	cleared := h.sentinel.Activity().ClearLogs()
	h.sentinel.Activity().LogActivity(activity.CategoryAdmin, activity.ActionLogsCleared, activity.Options{
		Level:   activity.LevelWarn,
		Details: map[string]any{"cleared": cleared},
		Status:  activity.StatusSuccess,
	})
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
