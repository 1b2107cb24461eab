// Package middleware puts the abuse detector in front of an http.Handler.
//
// For every request the handler assigns a request ID, sets security
// headers, resolves the client IP and then, unless the client is in a
// trusted network, rejects blocked addresses (403), counts the request
// against the rate limit (429 once exceeded) and scans the path and query
// for suspicious input (400). With ScanBody set, a bounded prefix of form
// and JSON bodies is scanned too. Rate limit state is reported through the
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers,
// computed in the same step that counts the request.
package middleware
