package sentinel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/alerting"
	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/middleware"
	"github.com/giantswarm/sentinel/reaper"
	"github.com/giantswarm/sentinel/security"
	"github.com/giantswarm/sentinel/session"
	"github.com/giantswarm/sentinel/threat"
)

// Config holds the configuration of every component.
// Structured using composition; each section is owned by its package.
type Config struct {
	// Sessions configures the session registry
	Sessions session.Config `yaml:"sessions"`

	// Detection configures brute force, rate limit and input checks
	Detection security.Config `yaml:"detection"`

	// Threats configures the threat event store
	Threats threat.Config `yaml:"threats"`

	// Activity configures the activity log
	Activity activity.Config `yaml:"activity"`

	// Reaper configures the periodic sweep
	Reaper reaper.Config `yaml:"reaper"`

	// Alerting configures threat alert publication
	Alerting alerting.Config `yaml:"alerting"`

	// Middleware configures the HTTP request middleware
	Middleware middleware.Config `yaml:"middleware"`

	// Instrumentation configures OpenTelemetry
	Instrumentation instrumentation.Config `yaml:"instrumentation"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Sessions: session.DefaultConfig(),
		Detection: security.Config{
			MaxFailedLogins:       security.DefaultMaxFailedLogins,
			FailedLoginWindow:     security.DefaultFailedLoginWindow,
			RateLimitRequests:     security.DefaultRateLimitRequests,
			RateLimitWindow:       security.DefaultRateLimitWindow,
			AlertThreshold:        security.DefaultAlertThreshold,
			MaxTrackedIdentifiers: security.DefaultMaxTrackedIdentifiers,
		},
		Threats: threat.Config{MaxEvents: threat.DefaultMaxEvents},
		Activity: activity.Config{
			MaxEntries: activity.DefaultMaxEntries,
			MinLevel:   activity.DefaultMinLevel,
			Mirror:     true,
		},
		Reaper:   reaper.Config{Interval: reaper.DefaultInterval},
		Alerting: alerting.Config{Topic: alerting.DefaultTopic, BufferSize: alerting.DefaultBufferSize},
		Instrumentation: instrumentation.Config{
			ServiceName:    instrumentation.DefaultServiceName,
			ServiceVersion: instrumentation.DefaultServiceVersion,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig. ${VAR} references are
// expanded from the environment first. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(expandEnvVars(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: parsing config: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns. Unset variables expand to "".
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		return []byte(os.Getenv(string(match[2 : len(match)-1])))
	})
}

// Validate reports configuration that cannot be clamped to a default.
func (c Config) Validate() error {
	if c.Activity.MinLevel != 0 && !slices.Contains(activity.Levels, c.Activity.MinLevel) {
		return fmt.Errorf("%w: unknown activity minLevel %d", ErrInvalidConfig, c.Activity.MinLevel)
	}
	if t := c.Detection.AlertThreshold; t != 0 && (t < threat.LevelLow || t > threat.LevelCritical) {
		return fmt.Errorf("%w: unknown alertThreshold %d", ErrInvalidConfig, c.Detection.AlertThreshold)
	}
	if _, err := middleware.BuildIPSet(c.Middleware.TrustedNetworks); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
