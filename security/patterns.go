package security

import (
	"fmt"
	"regexp"

	"github.com/giantswarm/sentinel/threat"
)

// DefaultSuspiciousPatterns are evaluated in order when no patterns are
// configured. The first match wins.
var DefaultSuspiciousPatterns = []string{
	`\b(union\s+(all\s+)?select|select\s+.+\s+from|insert\s+into|delete\s+from|drop\s+(table|database)|update\s+\w+\s+set)\b`,
	`['"]\s*(or|and)\s+['"]?\w+['"]?\s*=\s*['"]?\w+`,
	`;\s*(drop|delete|truncate|exec|shutdown)\b`,
	`<\s*script\b`,
	`javascript\s*:`,
	`\b(onerror|onload|onclick|onmouseover|onfocus)\s*=`,
	`<\s*iframe\b`,
	`\.\./|\.\.\\`,
	`%00|\x00`,
}

// MaxInputSnippet is the number of runes of offending input kept in threat details.
const MaxInputSnippet = 100

var (
	sqlKeywords    = regexp.MustCompile(`(?i)\b(select|union|insert|update|delete|drop|truncate|exec|alter|where|from|or|and)\b`)
	scriptKeywords = regexp.MustCompile(`(?i)(script|iframe|onerror|onload|onclick|onmouseover|onfocus|alert|document\.cookie|eval)`)
)

type suspiciousPattern struct {
	source string
	re     *regexp.Regexp
	kind   threat.Type
}

// compilePatterns compiles every pattern once, case-insensitively, and
// classifies it from its source text.
func compilePatterns(sources []string) ([]suspiciousPattern, error) {
	patterns := make([]suspiciousPattern, 0, len(sources))
	for i, src := range sources {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("suspicious pattern %d %q: %w", i, src, err)
		}
		patterns = append(patterns, suspiciousPattern{
			source: src,
			re:     re,
			kind:   classifyPattern(src),
		})
	}
	return patterns, nil
}

// classifyPattern maps pattern text to a threat type. SQL keywords take
// precedence over script keywords.
func classifyPattern(src string) threat.Type {
	switch {
	case sqlKeywords.MatchString(src):
		return threat.TypeSQLInjection
	case scriptKeywords.MatchString(src):
		return threat.TypeXSSAttempt
	default:
		return threat.TypeAnomalousBehavior
	}
}
