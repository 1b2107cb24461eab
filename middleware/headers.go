package middleware

import "net/http"

// SetSecurityHeaders sets the response headers every answer carries.
// hsts adds Strict-Transport-Security and should only be set behind TLS.
func SetSecurityHeaders(w http.ResponseWriter, hsts bool) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")
	if hsts {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
	h.Set("Cache-Control", "no-store")
}
