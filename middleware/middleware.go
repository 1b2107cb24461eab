package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go4.org/netipx"

	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/internal/httperr"
	"github.com/giantswarm/sentinel/security"
	"github.com/giantswarm/sentinel/threat"
)

// Request decisions, used as the metric attribute of every request
const (
	DecisionAllowed         = "allowed"
	DecisionTrusted         = "trusted"
	DecisionBlocked         = "blocked"
	DecisionRateLimited     = "rate_limited"
	DecisionSuspiciousInput = "suspicious_input"
)

// DefaultMaxBodyScanBytes bounds how much of a request body is scanned.
const DefaultMaxBodyScanBytes = 64 << 10

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// Detector is the part of security.Detector the middleware uses.
type Detector interface {
	IsIPBlocked(ip string) bool
	CountRequest(identifier string) (*threat.Event, security.RateLimitStatus)
	CheckSuspiciousInput(input string, context map[string]string) *threat.Event
}

// Config holds the middleware configuration.
type Config struct {
	// TrustProxy honours X-Forwarded-For and X-Real-IP.
	// Only enable behind a reverse proxy you control.
	TrustProxy bool `yaml:"trustProxy"`

	// TrustedProxyCount is the number of trusted proxies appending to X-Forwarded-For.
	TrustedProxyCount int `yaml:"trustedProxyCount"`

	// TrustedNetworks lists addresses or CIDR prefixes that bypass every check.
	TrustedNetworks []string `yaml:"trustedNetworks"`

	// SkipInputCheck disables the suspicious input scan of path and query.
	SkipInputCheck bool `yaml:"skipInputCheck"`

	// ScanBody adds form and JSON request bodies to the input scan.
	ScanBody bool `yaml:"scanBody"`

	// MaxBodyScanBytes is the body prefix scanned when ScanBody is set
	// (default: 64 KiB). The handler still receives the whole body.
	MaxBodyScanBytes int64 `yaml:"maxBodyScanBytes"`

	// HSTS adds Strict-Transport-Security to every response.
	HSTS bool `yaml:"hsts"`
}

// Middleware enforces the detector's decisions on HTTP requests.
type Middleware struct {
	config          Config
	detector        Detector
	trusted         *netipx.IPSet
	logger          *slog.Logger
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

// New creates the middleware. It fails when a trusted network entry is
// neither an address nor a prefix.
func New(cfg Config, detector Detector, logger *slog.Logger) (*Middleware, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TrustedProxyCount < 0 {
		logger.Warn("Invalid trustedProxyCount, using 0", "provided", cfg.TrustedProxyCount)
		cfg.TrustedProxyCount = 0
	}
	if cfg.MaxBodyScanBytes <= 0 {
		cfg.MaxBodyScanBytes = DefaultMaxBodyScanBytes
	}

	trusted, err := BuildIPSet(cfg.TrustedNetworks)
	if err != nil {
		return nil, err
	}

	return &Middleware{
		config:   cfg,
		detector: detector,
		trusted:  trusted,
		logger:   logger,
	}, nil
}

// BuildIPSet constructs a netipx.IPSet from addresses and CIDR prefixes.
func BuildIPSet(entries []string) (*netipx.IPSet, error) {
	var builder netipx.IPSetBuilder
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted network %q: %w", entry, err)
			}
			builder.AddPrefix(prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted address %q: %w", entry, err)
		}
		builder.Add(addr.Unmap())
	}
	return builder.IPSet()
}

// SetInstrumentation enables request metrics and spans.
func (m *Middleware) SetInstrumentation(inst *instrumentation.Instrumentation) {
	m.instrumentation = inst
	if inst != nil {
		m.tracer = inst.Tracer("middleware")
	}
}

// IsTrusted reports whether ip is inside a trusted network.
func (m *Middleware) IsTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return m.trusted.Contains(addr.Unmap())
}

// Handler wraps next with the request checks.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if m.tracer != nil {
			var span trace.Span
			ctx, span = m.tracer.Start(ctx, "middleware.request")
			defer span.End()
		}
		span := trace.SpanFromContext(ctx)

		id := requestID(r)
		w.Header().Set(RequestIDHeader, id)
		SetSecurityHeaders(w, m.config.HSTS)

		ip := GetClientIP(r, m.config.TrustProxy, m.config.TrustedProxyCount)
		ctx = WithClientIP(WithRequestID(ctx, id), ip)
		r = r.WithContext(ctx)

		if m.instrumentation != nil && m.instrumentation.ShouldLogClientIPs() {
			instrumentation.AddSecurityAttributes(span, ip)
		}

		decision, apiErr := m.check(w, r, ip)
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrMiddlewareResult, decision))
		if m.instrumentation != nil && m.instrumentation.Metrics() != nil {
			m.instrumentation.Metrics().RecordHTTPRequest(ctx, r.Method, decision)
		}

		if apiErr != nil {
			m.logger.Debug("Request rejected",
				"request_id", id,
				"decision", decision,
				"method", r.Method,
				"path", r.URL.Path)
			httperr.Write(w, apiErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check runs the detector against r and returns the decision and, for a
// rejection, the error to send.
func (m *Middleware) check(w http.ResponseWriter, r *http.Request, ip string) (string, *httperr.APIError) {
	if m.IsTrusted(ip) {
		return DecisionTrusted, nil
	}

	if m.detector.IsIPBlocked(ip) {
		return DecisionBlocked, httperr.AccessDenied("client address is blocked")
	}

	event, status := m.detector.CountRequest(ip)
	setRateLimitHeaders(w, status)
	if event != nil {
		retryAfter := max(int(status.RetryAfter.Round(time.Second).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		return DecisionRateLimited, httperr.RateLimitExceeded("too many requests")
	}

	if !m.config.SkipInputCheck {
		input := requestInput(r)
		if m.config.ScanBody {
			if body := m.bodyInput(r); body != "" {
				input += "\n" + body
			}
		}
		if event := m.detector.CheckSuspiciousInput(input, map[string]string{
			security.ContextIP:        ip,
			security.ContextEndpoint:  r.URL.Path,
			security.ContextUserAgent: r.UserAgent(),
			"method":                  r.Method,
			"request_id":              GetRequestID(r.Context()),
		}); event != nil {
			return DecisionSuspiciousInput, httperr.SuspiciousInput("request rejected")
		}
	}

	return DecisionAllowed, nil
}

func setRateLimitHeaders(w http.ResponseWriter, status security.RateLimitStatus) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(status.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(status.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(status.Reset.Unix(), 10))
}

// requestInput is the decoded path and query that are scanned for attacks.
func requestInput(r *http.Request) string {
	input := r.URL.Path
	if r.URL.RawQuery != "" {
		query := r.URL.RawQuery
		if decoded, err := url.QueryUnescape(query); err == nil {
			query = decoded
		}
		input += "?" + query
	}
	return input
}

// bodyInput returns up to MaxBodyScanBytes of a form or JSON body and
// puts the consumed prefix back in front of r.Body.
func (m *Middleware) bodyInput(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	form := mediaType == "application/x-www-form-urlencoded"
	if !form && mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		return ""
	}

	prefix, err := io.ReadAll(io.LimitReader(r.Body, m.config.MaxBodyScanBytes))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(prefix), r.Body), Closer: r.Body}
	if err != nil {
		m.logger.Debug("Failed to read request body for input scan", "error", err)
	}

	body := string(prefix)
	if form {
		if decoded, err := url.QueryUnescape(body); err == nil {
			body = decoded
		}
	}
	return body
}

type readCloser struct {
	io.Reader
	io.Closer
}
