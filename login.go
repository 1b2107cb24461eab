package sentinel

import (
	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/session"
	"github.com/giantswarm/sentinel/threat"
)

// LoginAttempt is the outcome of a credential check performed by the caller.
type LoginAttempt struct {
	UserID    string
	UserName  string
	UserRole  string
	IPAddress string
	UserAgent string

	// Success is true when the credentials were valid.
	Success bool
}

// LoginResult is what the auth handler should do with the attempt.
type LoginResult struct {
	// Allowed is true when a session was created.
	Allowed bool `json:"allowed"`

	// Blocked is true when the client address is on the blocklist.
	Blocked bool `json:"blocked,omitempty"`

	// Session is the created session when Allowed.
	Session *session.Session `json:"session,omitempty"`

	// Threats lists brute force events raised by this attempt.
	Threats []threat.Event `json:"threats,omitempty"`
}

// LoginAttempt records an authentication attempt.
//
// Attempts from a blocked address are refused without touching the
// counters. Otherwise brute force detection runs keyed by address and by
// account; a successful attempt clears both counters and creates a session.
func (s *Sentinel) LoginAttempt(a LoginAttempt) LoginResult {
	opts := activity.Options{
		IPAddress: a.IPAddress,
		UserAgent: a.UserAgent,
	}

	if a.IPAddress != "" && s.detector.IsIPBlocked(a.IPAddress) {
		opts.Details = map[string]any{"reason": "ip_blocked"}
		s.activity.LogAuthEvent(activity.ActionLoginBlocked, a.UserID, false, opts)
		return LoginResult{Blocked: true}
	}

	var res LoginResult
	for _, key := range loginKeys(a) {
		if e := s.detector.CheckBruteForce(key, a.Success); e != nil {
			res.Threats = append(res.Threats, *e)
		}
	}

	if !a.Success {
		opts.Details = map[string]any{"failed_attempts": s.detector.FailedAttempts(a.UserID)}
		s.activity.LogAuthEvent(activity.ActionLoginFailed, a.UserID, false, opts)
		return res
	}

	sess := s.sessions.CreateSession(a.UserID, a.UserAgent, a.IPAddress, a.UserName, a.UserRole)
	opts.SessionID = sess.ID
	s.activity.LogAuthEvent(activity.ActionLoginSucceeded, a.UserID, true, opts)

	res.Allowed = true
	res.Session = &sess
	return res
}

// loginKeys returns the brute force identifiers of an attempt. Counting by
// address and by account means neither rotating accounts nor rotating
// addresses escapes detection.
func loginKeys(a LoginAttempt) []string {
	var keys []string
	if a.IPAddress != "" {
		keys = append(keys, a.IPAddress)
	}
	if a.UserID != "" && a.UserID != a.IPAddress {
		keys = append(keys, a.UserID)
	}
	return keys
}

// AuthorizeAccess runs the unauthorized access check for resource and
// records the decision in the activity log. It returns false only when the
// check raised a threat, that is when a non-admin reaches an admin resource.
func (s *Sentinel) AuthorizeAccess(userID, resource, requiredRole, actualRole string) bool {
	e := s.detector.CheckUnauthorizedAccess(userID, resource, requiredRole, actualRole)
	granted := e == nil

	opts := activity.Options{
		Details: map[string]any{"required_role": requiredRole, "actual_role": actualRole},
	}
	if !granted {
		opts.Details["threat_id"] = e.ID
	}
	s.activity.LogAccessEvent(resource, userID, granted, opts)
	return granted
}
