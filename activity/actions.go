package activity

// Action names written by the telemetry core.
// Keeping them here avoids typos between the writers and dashboard queries.
const (
	// Session lifecycle

	// ActionSessionCreated is logged when a session is created after authentication
	ActionSessionCreated = "session_created"

	// ActionSessionRenewed is logged (at debug) when an access extends a session
	ActionSessionRenewed = "session_renewed"

	// ActionSessionExpired is logged when a lookup finds an expired session
	ActionSessionExpired = "session_expired"

	// ActionSessionInvalidated is logged when a single session is invalidated
	ActionSessionInvalidated = "session_invalidated"

	// ActionSessionEvicted is logged when the per-user cap pushes out a session
	ActionSessionEvicted = "session_evicted"

	// ActionAllSessionsInvalidated is logged when every session of a user is invalidated
	ActionAllSessionsInvalidated = "all_sessions_invalidated"

	// ActionSessionsCleanedUp is logged when a sweep removes sessions
	ActionSessionsCleanedUp = "sessions_cleaned_up"

	// Authentication

	// ActionLoginSucceeded is logged for a successful login attempt
	ActionLoginSucceeded = "login_success"

	// ActionLoginFailed is logged for a failed login attempt
	ActionLoginFailed = "login_failure"

	// ActionLoginBlocked is logged when a login comes from a blocked address
	ActionLoginBlocked = "login_blocked"

	// Detection

	// ActionThreatDetected is logged for every recorded threat event
	ActionThreatDetected = "threat_detected"

	// ActionThreatStatusUpdated is logged when an administrator changes a threat status
	ActionThreatStatusUpdated = "threat_status_updated"

	// ActionIPBlocked is logged when an address is added to the blocklist
	ActionIPBlocked = "ip_blocked"

	// ActionIPUnblocked is logged when an address is removed from the blocklist
	ActionIPUnblocked = "ip_unblocked"

	// ActionCountersPruned is logged when stale detection counters are dropped
	ActionCountersPruned = "counters_pruned"

	// Access

	// ActionAccessGranted is logged when a protected resource is served
	ActionAccessGranted = "access_granted"

	// ActionAccessDenied is logged when a protected resource is refused
	ActionAccessDenied = "access_denied"

	// Operations

	// ActionReaperSweep is logged (at debug) after each periodic sweep
	ActionReaperSweep = "reaper_sweep"

	// ActionSystemStarted is logged when the background workers start
	ActionSystemStarted = "system_started"

	// ActionSystemStopped is logged when the background workers stop
	ActionSystemStopped = "system_stopped"

	// ActionLogsCleared is logged by administrators clearing the activity log
	ActionLogsCleared = "logs_cleared"

	// ActionLogsExported is logged when the activity log is exported
	ActionLogsExported = "logs_exported"
)
