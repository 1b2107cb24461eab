package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: never put session tokens or raw request payloads in span
// attributes. Threat IDs, types, levels and counts are safe.
const (
	// Session attributes
	AttrSessionOperation = "session.operation"
	AttrSessionCount     = "session.count"

	// Threat attributes
	AttrThreatID    = "threat.id"
	AttrThreatType  = "threat.type"
	AttrThreatLevel = "threat.level"

	// Reaper attributes
	AttrReaperSessionsRemoved = "reaper.sessions_removed"
	AttrReaperCountersRemoved = "reaper.counters_removed"

	// Security attributes
	AttrClientIP         = "security.client_ip"
	AttrMiddlewareResult = "security.middleware.decision"

	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddReaperAttributes adds sweep results to a span (nil-safe)
func AddReaperAttributes(span trace.Span, sessions, counters int) {
	SetSpanAttributes(span,
		attribute.Int(AttrReaperSessionsRemoved, sessions),
		attribute.Int(AttrReaperCountersRemoved, counters),
	)
}

// AddThreatAttributes adds threat identification to a span (nil-safe)
func AddThreatAttributes(span trace.Span, id, threatType, level string) {
	SetSpanAttributes(span,
		attribute.String(AttrThreatID, id),
		attribute.String(AttrThreatType, threatType),
		attribute.String(AttrThreatLevel, level),
	)
}

// AddSecurityAttributes adds the client IP to a span (nil-safe)
//
// PRIVACY NOTE: check ShouldLogClientIPs before calling.
func AddSecurityAttributes(span trace.Span, clientIP string) {
	if clientIP != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientIP))
	}
}
