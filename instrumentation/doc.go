// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the
// sentinel security telemetry core.
//
// It exposes a single Instrumentation value that owns the meter and tracer
// providers plus a Metrics holder with pre-created instruments. Every store
// accepts it through SetInstrumentation; passing nil keeps the store silent.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "sentineld",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// When Enabled is true and no providers are given, the global providers from
// go.opentelemetry.io/otel are used, so an application that installs an SDK
// meter provider (for example with the Prometheus exporter) gets the metrics
// without further wiring. When Enabled is false, no-op providers are used.
//
// # Available Metrics
//
// Sessions:
//   - sentinel.session.created - Sessions created
//   - sentinel.session.ended{reason} - Sessions ended (invalidated, evicted, expired)
//   - sentinel.session.active - Sessions currently held by the registry (gauge)
//
// Detection:
//   - sentinel.threat.detected{type, level} - Threat events recorded
//   - sentinel.threat.status_changed{status} - Administrative status transitions
//   - sentinel.threat.stored - Threat events retained (gauge)
//   - sentinel.blocklist.changes{action} - Block and unblock operations
//   - sentinel.blocklist.size - Blocked addresses (gauge)
//   - sentinel.detector.tracked_identifiers{table} - Live window counters (gauge)
//   - sentinel.detector.counter.evictions{table} - Counters evicted at capacity
//
// Activity log:
//   - sentinel.activity.entries{level, result} - Entries accepted, dropped or evicted
//   - sentinel.activity.stored - Entries retained (gauge)
//
// Reaper:
//   - sentinel.reaper.sweeps - Sweeps run
//   - sentinel.reaper.removed{kind} - Records removed by sweeps
//   - sentinel.reaper.duration - Sweep duration in milliseconds
//
// Alerting and HTTP:
//   - sentinel.alert.published{result} - Threat alerts handed to the bus
//   - sentinel.http.requests{method, decision} - Middleware decisions
//
// # Privacy
//
// User identifiers and IP addresses are never used as metric attributes.
// Spans only carry them when LogClientIPs is set.
package instrumentation
