package activity

import (
	"maps"
	"time"
)

// Categories used by the telemetry core.
const (
	CategoryAuth     = "auth"
	CategorySession  = "session"
	CategorySecurity = "security"
	CategoryAccess   = "access"
	CategoryAdmin    = "admin"
	CategorySystem   = "system"
)

// Status is the outcome recorded with an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
)

// Entry is one immutable activity record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  string         `json:"category"`
	Action    string         `json:"action"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Status    Status         `json:"status,omitempty"`
}

// clone returns a copy whose Details map is not shared with e.
func (e Entry) clone() Entry {
	if e.Details != nil {
		e.Details = maps.Clone(e.Details)
	}
	return e
}

// Options carries the optional fields of the LogActivity family of helpers.
type Options struct {
	Level     Level
	UserID    string
	SessionID string
	IPAddress string
	UserAgent string
	Resource  string
	Details   map[string]any
	Duration  time.Duration
	Status    Status
}

func (o Options) entry(category, action string) Entry {
	return Entry{
		Level:     o.Level,
		Category:  category,
		Action:    action,
		UserID:    o.UserID,
		SessionID: o.SessionID,
		IPAddress: o.IPAddress,
		UserAgent: o.UserAgent,
		Resource:  o.Resource,
		Details:   o.Details,
		Duration:  o.Duration,
		Status:    o.Status,
	}
}

// Recorder accepts activity entries. *Log implements it.
type Recorder interface {
	Log(e Entry) bool
}
