package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPContextKey struct{}

// WithClientIP adds the resolved client IP to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIP retrieves the client IP resolved by the middleware
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPContextKey{}).(string); ok {
		return ip
	}
	return ""
}

// GetClientIP extracts the client IP address from the request.
// X-Forwarded-For and X-Real-IP are only honoured when trustProxy is set;
// trustedProxyCount is the number of proxies we control at the right end
// of X-Forwarded-For, so spoofed entries further left are skipped.
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := extractIPFromXFF(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return extractIPFromRemoteAddr(r.RemoteAddr)
}

// extractIPFromXFF picks the client entry of "client, proxy1, proxy2".
//
// Example with trustedProxyCount=2:
//
//	X-Forwarded-For: "1.2.3.4, untrusted-ip, proxy2-ip"
//	client index = len(ips) - 2 - 1 = 0 -> "1.2.3.4"
func extractIPFromXFF(xff string, trustedProxyCount int) string {
	if xff == "" {
		return ""
	}
	ips := strings.Split(xff, ",")
	return parseIP(ips[clientIPIndex(len(ips), trustedProxyCount)])
}

// clientIPIndex returns len - proxies - 1, treating 0 proxies as 1 and
// falling back to the leftmost entry when the list is too short.
func clientIPIndex(numIPs, trustedProxyCount int) int {
	proxyCount := max(trustedProxyCount, 1)
	return max(numIPs-proxyCount-1, 0)
}

// parseIP returns the canonical form of s, or "" when s is not an address.
func parseIP(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

func extractIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if ip := parseIP(host); ip != "" {
		return ip
	}
	return host
}
