package security

import (
	"net/netip"

	"github.com/giantswarm/sentinel/threat"
)

// CheckBruteForce counts a login attempt for identifier (usually the client
// IP or account name). A success clears the counter. A failure that brings
// the count within the window to MaxFailedLogins clears the counter and
// returns the recorded brute_force event; otherwise it returns nil.
func (d *Detector) CheckBruteForce(identifier string, success bool) *threat.Event {
	if success {
		d.failedLogins.remove(identifier)
		return nil
	}

	count := d.failedLogins.increment(identifier, d.clock.Now(), d.failedLoginWindow, d.maxFailedLogins).count
	if count < d.maxFailedLogins {
		return nil
	}

	d.logger.Warn("Brute force threshold reached",
		"identifier", identifier,
		"attempts", count,
		"window", d.failedLoginWindow)

	e := d.Detect(threat.Event{
		Type:   threat.TypeBruteForce,
		Level:  threat.LevelHigh,
		Source: sourceOf(identifier),
		Details: threat.Details{
			{Key: "attempts", Value: count},
			{Key: "window", Value: d.failedLoginWindow.String()},
			{Key: "identifier", Value: identifier},
		},
	})
	return &e
}

// FailedAttempts returns the failures currently counted for identifier.
func (d *Detector) FailedAttempts(identifier string) int {
	c, ok := d.failedLogins.peek(identifier, d.clock.Now(), d.failedLoginWindow)
	if !ok {
		return 0
	}
	return c.count
}

// sourceOf attributes an identifier to an address when it parses as one and
// to an account otherwise.
func sourceOf(identifier string) threat.Source {
	if _, err := netip.ParseAddr(identifier); err == nil {
		return threat.Source{IP: identifier}
	}
	return threat.Source{UserID: identifier}
}
