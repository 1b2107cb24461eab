// Package activity implements the bounded, leveled activity log of the
// telemetry core.
//
// All write helpers (Log, LogActivity, LogSecurityEvent, LogAuthEvent,
// LogAccessEvent) funnel into one ingestion path that drops entries below
// the configured minimum level, appends, and evicts the oldest entry once
// MaxEntries is exceeded. Reads return copies sorted newest first.
//
// Other packages depend on the Recorder interface rather than on *Log, so
// tests can substitute a recorder and a nil Recorder disables logging.
package activity
