package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxAge is the default absolute session lifetime
	DefaultMaxAge = 24 * time.Hour

	// DefaultMaxConcurrentSessions is the default per-user cap
	DefaultMaxConcurrentSessions = 5

	// DefaultSessionTimeout is the default idle timeout
	DefaultSessionTimeout = 30 * time.Minute

	// DefaultCookieName is the default session cookie name
	DefaultCookieName = "sentinel_session"
)

// Config holds the session registry configuration.
type Config struct {
	// MaxAge is the session lifetime, measured from the last renewal when
	// RenewOnActivity is set and from creation otherwise (default: 24h).
	MaxAge time.Duration `yaml:"maxAge"`

	// MaxConcurrentSessions caps the live sessions per user; creating one
	// more evicts the least recently active (default: 5).
	MaxConcurrentSessions int `yaml:"maxConcurrentSessions"`

	// SessionTimeout ends sessions unused for this long (default: 30m).
	// A negative value disables the idle timeout.
	SessionTimeout time.Duration `yaml:"sessionTimeout"`

	// RenewOnActivity extends ExpiresAt to now+MaxAge on every GetSession.
	RenewOnActivity bool `yaml:"renewOnActivity"`

	// Cookie carries transport hints for the HTTP layer. The registry does
	// not read it.
	Cookie CookieConfig `yaml:"cookie"`
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAge:                DefaultMaxAge,
		MaxConcurrentSessions: DefaultMaxConcurrentSessions,
		SessionTimeout:        DefaultSessionTimeout,
		RenewOnActivity:       true,
		Cookie: CookieConfig{
			Name:     DefaultCookieName,
			Secure:   true,
			HTTPOnly: true,
			SameSite: "strict",
		},
	}
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name     string `yaml:"name"`
	Secure   bool   `yaml:"secure"`
	HTTPOnly bool   `yaml:"httpOnly"`
	SameSite string `yaml:"sameSite"` // strict, lax or none
}

// HTTPCookie builds the cookie carrying a session ID.
func (c CookieConfig) HTTPCookie(sessionID string, expires time.Time) *http.Cookie {
	name := c.Name
	if name == "" {
		name = DefaultCookieName
	}
	return &http.Cookie{
		Name:     name,
		Value:    sessionID,
		Path:     "/",
		Expires:  expires,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: sameSiteMode(c.SameSite),
	}
}

func sameSiteMode(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
