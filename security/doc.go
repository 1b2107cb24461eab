// Package security implements the rate and abuse detector.
//
// A Detector owns two bounded tables of fixed-window counters (failed
// logins and requests, keyed by identifier, usually the client IP), the IP
// blocklist and the compiled list of suspicious input patterns. Every check
// that finds abuse funnels through Detect, the single writer of the threat
// store.
//
// # Counters
//
// Each check-and-update runs under the lock of its table, so concurrent
// requests can neither both pass a threshold nor double count. When a
// counter's window has elapsed the next event restarts it at 1.
//
//   - Brute force: a failure that brings the count to MaxFailedLogins
//     clears the counter and records a brute_force event. A success clears
//     it too.
//   - Rate limit: every request beyond RateLimitRequests in the window
//     records a rate_limit_exceeded event. The counter is not cleared, so a
//     sustained flood keeps alerting.
//
// Both tables are bounded by MaxTrackedIdentifiers; when full, the least
// recently seen identifier is evicted. PruneCounters drops counters whose
// window has elapsed and is run by the reaper.
//
// # Blocklist
//
// Blocks are kept in a github.com/patrickmn/go-cache cache. BlockIP blocks
// until UnblockIP; BlockIPFor blocks for a fixed time. Addresses are
// normalised, so IPv4-mapped IPv6 forms match their IPv4 entry.
//
// # Suspicious input
//
// Patterns are compiled once, case-insensitively, and evaluated in order;
// the first match wins. Each pattern is classified from its own text:
// SQL keywords make it sql_injection, script keywords xss_attempt, and
// anything else anomalous_behavior.
//
// # Example Usage
//
//	store := threat.NewStore(threat.Config{}, activityLog, logger)
//	detector, err := security.New(security.Config{MaxFailedLogins: 3}, store, activityLog, logger)
//	if err != nil {
//	    return err
//	}
//
//	if event := detector.CheckBruteForce(clientIP, false); event != nil {
//	    detector.BlockIPFor(clientIP, "brute force", time.Hour)
//	}
package security
