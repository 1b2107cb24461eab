// Package session implements the session registry: per-user collections of
// authenticated sessions with an absolute lifetime, an idle timeout and a
// per-user concurrency cap.
//
// A session is live while it is active, not past ExpiresAt and, when an
// idle timeout is configured, used within that timeout. Expiry is enforced
// lazily by GetSession and in bulk by CleanupExpiredSessions, which the
// reaper runs on a schedule.
//
// Locking: the registry map is guarded by an RWMutex and every user bucket
// by its own mutex. The registry lock is always taken before a bucket lock,
// never the other way round; a bucket that has been unlinked from the map
// is flagged as removed so writers that raced with the removal retry.
package session
