package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the telemetry core
type Metrics struct {
	// Session Metrics
	SessionsCreated metric.Int64Counter
	SessionsEnded   metric.Int64Counter
	ActiveSessions  metric.Int64ObservableGauge

	// Detection Metrics
	ThreatsDetected     metric.Int64Counter
	ThreatStatusChanged metric.Int64Counter
	StoredThreats       metric.Int64ObservableGauge
	BlocklistChanges    metric.Int64Counter
	BlockedIPs          metric.Int64ObservableGauge
	TrackedIdentifiers  metric.Int64ObservableGauge
	CounterEvictions    metric.Int64Counter

	// Activity Log Metrics
	ActivityEntries metric.Int64Counter
	StoredEntries   metric.Int64ObservableGauge

	// Reaper Metrics
	ReaperSweeps   metric.Int64Counter
	ReaperRemoved  metric.Int64Counter
	ReaperDuration metric.Float64Histogram

	// Alerting Metrics
	AlertsPublished metric.Int64Counter

	// HTTP Metrics
	HTTPRequests metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// Session Metrics
	m.SessionsCreated, err = inst.sessionMeter.Int64Counter(
		"sentinel.session.created",
		metric.WithDescription("Number of sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.created counter: %w", err)
	}

	m.SessionsEnded, err = inst.sessionMeter.Int64Counter(
		"sentinel.session.ended",
		metric.WithDescription("Number of sessions ended, by reason"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.ended counter: %w", err)
	}

	m.ActiveSessions, err = inst.gaugeMeter.Int64ObservableGauge(
		"sentinel.session.active",
		metric.WithDescription("Sessions currently held by the registry"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session.active gauge: %w", err)
	}

	// Detection Metrics
	m.ThreatsDetected, err = inst.securityMeter.Int64Counter(
		"sentinel.threat.detected",
		metric.WithDescription("Number of threat events recorded"),
		metric.WithUnit("{threat}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create threat.detected counter: %w", err)
	}

	m.ThreatStatusChanged, err = inst.securityMeter.Int64Counter(
		"sentinel.threat.status_changed",
		metric.WithDescription("Number of administrative threat status changes"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create threat.status_changed counter: %w", err)
	}

	m.StoredThreats, err = inst.gaugeMeter.Int64ObservableGauge(
		"sentinel.threat.stored",
		metric.WithDescription("Threat events retained in memory"),
		metric.WithUnit("{threat}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create threat.stored gauge: %w", err)
	}

	m.BlocklistChanges, err = inst.securityMeter.Int64Counter(
		"sentinel.blocklist.changes",
		metric.WithDescription("Number of block and unblock operations"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blocklist.changes counter: %w", err)
	}

	m.BlockedIPs, err = inst.gaugeMeter.Int64ObservableGauge(
		"sentinel.blocklist.size",
		metric.WithDescription("Addresses currently blocked"),
		metric.WithUnit("{address}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blocklist.size gauge: %w", err)
	}

	m.TrackedIdentifiers, err = inst.gaugeMeter.Int64ObservableGauge(
		"sentinel.detector.tracked_identifiers",
		metric.WithDescription("Identifiers with a live window counter"),
		metric.WithUnit("{identifier}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector.tracked_identifiers gauge: %w", err)
	}

	m.CounterEvictions, err = inst.securityMeter.Int64Counter(
		"sentinel.detector.counter.evictions",
		metric.WithDescription("Window counters evicted because the table was full"),
		metric.WithUnit("{counter}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector.counter.evictions counter: %w", err)
	}

	// Activity Log Metrics
	m.ActivityEntries, err = inst.activityMeter.Int64Counter(
		"sentinel.activity.entries",
		metric.WithDescription("Activity log entries by ingestion result"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity.entries counter: %w", err)
	}

	m.StoredEntries, err = inst.gaugeMeter.Int64ObservableGauge(
		"sentinel.activity.stored",
		metric.WithDescription("Activity log entries retained in memory"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity.stored gauge: %w", err)
	}

	// Reaper Metrics
	m.ReaperSweeps, err = inst.reaperMeter.Int64Counter(
		"sentinel.reaper.sweeps",
		metric.WithDescription("Number of reaper sweeps"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reaper.sweeps counter: %w", err)
	}

	m.ReaperRemoved, err = inst.reaperMeter.Int64Counter(
		"sentinel.reaper.removed",
		metric.WithDescription("Records removed by reaper sweeps"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reaper.removed counter: %w", err)
	}

	m.ReaperDuration, err = inst.reaperMeter.Float64Histogram(
		"sentinel.reaper.duration",
		metric.WithDescription("Reaper sweep duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reaper.duration histogram: %w", err)
	}

	// Alerting Metrics
	m.AlertsPublished, err = inst.securityMeter.Int64Counter(
		"sentinel.alert.published",
		metric.WithDescription("Threat alerts handed to the alert bus"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert.published counter: %w", err)
	}

	// HTTP Metrics
	m.HTTPRequests, err = inst.httpMeter.Int64Counter(
		"sentinel.http.requests",
		metric.WithDescription("Requests seen by the middleware, by decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests counter: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordSessionCreated records a new session
func (m *Metrics) RecordSessionCreated(ctx context.Context, role string) {
	m.SessionsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
	))
}

// RecordSessionsEnded records sessions leaving the registry
func (m *Metrics) RecordSessionsEnded(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}
	m.SessionsEnded.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordThreatDetected records a threat event
func (m *Metrics) RecordThreatDetected(ctx context.Context, threatType, level string) {
	m.ThreatsDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", threatType),
		attribute.String("level", level),
	))
}

// RecordThreatStatusChanged records an administrative status transition
func (m *Metrics) RecordThreatStatusChanged(ctx context.Context, status string) {
	m.ThreatStatusChanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordBlocklistChange records a block or unblock
func (m *Metrics) RecordBlocklistChange(ctx context.Context, action string) {
	m.BlocklistChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
	))
}

// RecordCounterEviction records a window counter evicted at capacity
func (m *Metrics) RecordCounterEviction(ctx context.Context, table string) {
	m.CounterEvictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
	))
}

// RecordActivityEntry records the ingestion result of one log entry
func (m *Metrics) RecordActivityEntry(ctx context.Context, level, result string) {
	m.ActivityEntries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level),
		attribute.String("result", result),
	))
}

// RecordReaperSweep records one sweep and what it removed
func (m *Metrics) RecordReaperSweep(ctx context.Context, sessions, counters int, durationMs float64) {
	m.ReaperSweeps.Add(ctx, 1)
	if sessions > 0 {
		m.ReaperRemoved.Add(ctx, int64(sessions), metric.WithAttributes(attribute.String("kind", "session")))
	}
	if counters > 0 {
		m.ReaperRemoved.Add(ctx, int64(counters), metric.WithAttributes(attribute.String("kind", "counter")))
	}
	m.ReaperDuration.Record(ctx, durationMs)
}

// RecordAlertPublished records an alert publication attempt
func (m *Metrics) RecordAlertPublished(ctx context.Context, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	m.AlertsPublished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordHTTPRequest records a middleware decision
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, decision string) {
	m.HTTPRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("decision", decision),
	))
}
