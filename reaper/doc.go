// Package reaper runs the periodic sweep that removes expired sessions and
// stale detection counters.
//
// Expiry is also enforced lazily on access, so the sweep only bounds memory:
// a session or counter nobody looks at again is removed here.
//
// Usage:
//
//	r := reaper.New(reaper.Config{Interval: 5 * time.Minute}, registry, detector, recorder, logger)
//	r.Start()
//	defer r.Stop()
package reaper
