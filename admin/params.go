package admin

import (
	"net/url"
	"strconv"
	"time"

	"github.com/giantswarm/sentinel/internal/httperr"
)

// maxLimit caps the limit query parameter.
const maxLimit = 10000

func parseLimit(q url.Values) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, httperr.InvalidRequest("limit must be a non-negative integer")
	}
	return min(n, maxLimit), nil
}

// parseTime accepts RFC 3339 timestamps. An absent parameter is the zero time.
func parseTime(q url.Values, key string) (time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, httperr.InvalidRequest(key + " must be an RFC 3339 timestamp")
	}
	return t, nil
}

func parseRange(q url.Values) (since, until time.Time, err error) {
	if since, err = parseTime(q, "since"); err != nil {
		return
	}
	until, err = parseTime(q, "until")
	return
}
