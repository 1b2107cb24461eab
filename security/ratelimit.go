package security

import (
	"time"

	"github.com/giantswarm/sentinel/threat"
)

// RateLimitStatus is the state of an identifier's request window, shaped
// for X-RateLimit-* and Retry-After response headers.
type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`

	// RetryAfter is the time until Reset on the detector clock.
	RetryAfter time.Duration `json:"retry_after"`
}

// CheckRateLimit counts one request for identifier. Every request beyond
// RateLimitRequests within the window returns a rate_limit_exceeded event;
// the counter is not cleared on breach, so a sustained flood keeps alerting.
func (d *Detector) CheckRateLimit(identifier string) *threat.Event {
	event, _ := d.CountRequest(identifier)
	return event
}

// CountRequest is CheckRateLimit that also returns the window state as it
// stood right after this request was counted, taken under the same lock.
func (d *Detector) CountRequest(identifier string) (*threat.Event, RateLimitStatus) {
	now := d.clock.Now()
	c := d.requests.increment(identifier, now, d.rateLimitWindow, 0)
	status := d.rateLimitStatus(c, now)
	if c.count <= d.rateLimitRequests {
		return nil, status
	}

	d.floodLog.Do(func() {
		d.logger.Warn("Rate limit exceeded",
			"identifier", identifier,
			"requests", c.count,
			"limit", d.rateLimitRequests,
			"window", d.rateLimitWindow)
	})

	e := d.Detect(threat.Event{
		Type:   threat.TypeRateLimitExceeded,
		Level:  threat.LevelMedium,
		Source: threat.Source{IP: identifier},
		Details: threat.Details{
			{Key: "requests", Value: c.count},
			{Key: "limit", Value: d.rateLimitRequests},
			{Key: "window", Value: d.rateLimitWindow.String()},
		},
	})
	return &e, status
}

// RateLimitStatus reports the limit, remaining requests and window reset
// time for identifier without counting a request.
func (d *Detector) RateLimitStatus(identifier string) RateLimitStatus {
	now := d.clock.Now()
	c, ok := d.requests.peek(identifier, now, d.rateLimitWindow)
	if !ok {
		c = windowCounter{windowStart: now}
	}
	return d.rateLimitStatus(c, now)
}

func (d *Detector) rateLimitStatus(c windowCounter, now time.Time) RateLimitStatus {
	reset := c.windowStart.Add(d.rateLimitWindow)
	return RateLimitStatus{
		Limit:      d.rateLimitRequests,
		Remaining:  max(d.rateLimitRequests-c.count, 0),
		Reset:      reset,
		RetryAfter: max(reset.Sub(now), 0),
	}
}
