package security

import (
	"maps"
	"slices"

	"github.com/giantswarm/sentinel/internal/util"
	"github.com/giantswarm/sentinel/threat"
)

// Context keys CheckSuspiciousInput also copies into the event source and target.
const (
	ContextIP        = "ip"
	ContextUserID    = "user_id"
	ContextSessionID = "session_id"
	ContextUserAgent = "user_agent"
	ContextEndpoint  = "endpoint"
)

// CheckSuspiciousInput tests input against the configured patterns in order.
// On the first match it records a high level event carrying the first
// MaxInputSnippet runes of input, the matched pattern and the context
// entries sorted by key. It returns nil when nothing matches.
func (d *Detector) CheckSuspiciousInput(input string, context map[string]string) *threat.Event {
	if input == "" {
		return nil
	}

	for _, p := range d.patterns {
		if !p.re.MatchString(input) {
			continue
		}

		details := threat.Details{
			{Key: "input", Value: util.TruncateRunes(input, MaxInputSnippet)},
			{Key: "pattern", Value: p.source},
		}
		for _, key := range slices.Sorted(maps.Keys(context)) {
			if key == "input" || key == "pattern" {
				continue
			}
			details = append(details, threat.Detail{Key: key, Value: context[key]})
		}

		e := d.Detect(threat.Event{
			Type:  p.kind,
			Level: threat.LevelHigh,
			Source: threat.Source{
				IP:        context[ContextIP],
				UserID:    context[ContextUserID],
				SessionID: context[ContextSessionID],
				UserAgent: context[ContextUserAgent],
			},
			Target:  threat.Target{Endpoint: context[ContextEndpoint]},
			Details: details,
		})
		return &e
	}
	return nil
}
