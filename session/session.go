package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"maps"
	"time"
)

// sessionIDBytes is the number of random bytes in a session ID
const sessionIDBytes = 32

// Session is one authenticated session. Values returned by the registry
// are copies; changing them does not affect the registry.
type Session struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	UserName     string            `json:"user_name,omitempty"`
	UserRole     string            `json:"user_role,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	ExpiresAt    time.Time         `json:"expires_at"`
	IsActive     bool              `json:"is_active"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (s *Session) clone() Session {
	c := *s
	if s.Metadata != nil {
		c.Metadata = maps.Clone(s.Metadata)
	}
	return c
}

// UserSessions groups the live sessions of one user.
type UserSessions struct {
	UserID   string    `json:"user_id"`
	Sessions []Session `json:"sessions"`
}

// Uptime is the time since a session was created.
type Uptime struct {
	TotalSeconds int64  `json:"total_seconds"`
	Formatted    string `json:"formatted"`
	Hours        int64  `json:"hours"`
	Minutes      int64  `json:"minutes"`
	Seconds      int64  `json:"seconds"`
}

// Stats summarises the live sessions.
type Stats struct {
	TotalSessions        int            `json:"total_sessions"`
	TotalUsers           int            `json:"total_users"`
	SessionsByRole       map[string]int `json:"sessions_by_role"`
	AverageUptimeSeconds int64          `json:"average_uptime_seconds"`
}

// generateSessionID returns 32 random bytes, hex encoded.
// The function panics if the system's random number generator fails.
func generateSessionID() string {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func uptimeOf(d time.Duration) Uptime {
	total := max(int64(d/time.Second), 0)
	u := Uptime{
		TotalSeconds: total,
		Hours:        total / 3600,
		Minutes:      total % 3600 / 60,
		Seconds:      total % 60,
	}
	u.Formatted = fmt.Sprintf("%dh %dm %ds", u.Hours, u.Minutes, u.Seconds)
	return u
}
