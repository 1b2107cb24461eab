package activity

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned by ExportLogs for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format selects the ExportLogs encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

var csvHeader = []string{"timestamp", "level", "category", "action", "user_id", "status", "details"}

// ExportLogs serialises every retained entry in chronological order.
func (l *Log) ExportLogs(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(l.snapshot())
	case FormatCSV:
		return exportCSV(l.snapshot())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func exportJSON(entries []Entry) ([]byte, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode activity log: %w", err)
	}
	return data, nil
}

func exportCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			raw, err := json.Marshal(e.Details)
			if err != nil {
				return nil, fmt.Errorf("failed to encode details of %s entry: %w", e.Action, err)
			}
			details = string(raw)
		}
		record := []string{
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.Level.String(),
			e.Category,
			e.Action,
			e.UserID,
			string(e.Status),
			details,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
