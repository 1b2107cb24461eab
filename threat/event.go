package threat

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a threat event.
type Type string

const (
	TypeBruteForce         Type = "brute_force"
	TypeRateLimitExceeded  Type = "rate_limit_exceeded"
	TypeSQLInjection       Type = "sql_injection"
	TypeXSSAttempt         Type = "xss_attempt"
	TypeUnauthorizedAccess Type = "unauthorized_access"
	TypeAnomalousBehavior  Type = "anomalous_behavior"
)

// Types lists every known threat type.
var Types = []Type{
	TypeBruteForce,
	TypeRateLimitExceeded,
	TypeSQLInjection,
	TypeXSSAttempt,
	TypeUnauthorizedAccess,
	TypeAnomalousBehavior,
}

// Level is the ordered severity of a threat. The zero value means unset.
type Level int

const (
	LevelLow Level = iota + 1
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = map[Level]string{
	LevelLow:      "low",
	LevelMedium:   "medium",
	LevelHigh:     "high",
	LevelCritical: "critical",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown threat level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if _, ok := levelNames[l]; !ok {
		return nil, fmt.Errorf("invalid threat level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Status is the administrative state of a threat.
type Status string

const (
	StatusDetected      Status = "detected"
	StatusInvestigating Status = "investigating"
	StatusMitigated     Status = "mitigated"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDetected,
	StatusInvestigating,
	StatusMitigated,
	StatusResolved,
	StatusFalsePositive,
}

// IsAssignable reports whether an administrator may move a threat to s.
// Detected is only ever the initial state.
func (s Status) IsAssignable() bool {
	switch s {
	case StatusInvestigating, StatusMitigated, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Source describes where a threat came from.
type Source struct {
	IP        string `json:"ip,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Target describes what a threat was aimed at.
type Target struct {
	Resource string `json:"resource,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Event is one detection record. Everything except Status and
// MitigationAction is fixed once the event is stored.
type Event struct {
	ID               string    `json:"id"`
	Type             Type      `json:"type"`
	Level            Level     `json:"level"`
	Timestamp        time.Time `json:"timestamp"`
	Source           Source    `json:"source"`
	Target           Target    `json:"target"`
	DetailsVersion   int       `json:"details_version"`
	Details          Details   `json:"details"`
	Status           Status    `json:"status"`
	MitigationAction string    `json:"mitigation_action,omitempty"`
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	e.Details = e.Details.Clone()
	return e
}

// Summary is a one-line description for logs and alerts.
func (e Event) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", e.Type, e.Level)
	if e.Source.IP != "" {
		fmt.Fprintf(&b, " from %s", e.Source.IP)
	}
	if e.Source.UserID != "" {
		fmt.Fprintf(&b, " by user %s", e.Source.UserID)
	}
	if e.Target.Resource != "" {
		fmt.Fprintf(&b, " on %s", e.Target.Resource)
	}
	return b.String()
}
