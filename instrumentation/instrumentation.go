package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "sentinel"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	scopePrefix = "github.com/giantswarm/sentinel/"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (e.g., "sentineld")
	ServiceName string `yaml:"serviceName"`

	// ServiceVersion is the version of the service
	ServiceVersion string `yaml:"serviceVersion"`

	// Enabled controls whether instrumentation is active.
	// When false, uses no-op providers (zero overhead).
	Enabled bool `yaml:"enabled"`

	// LogClientIPs controls whether client IP addresses are attached to spans.
	// Client IPs may be personal data under GDPR; leave off unless required.
	LogClientIPs bool `yaml:"logClientIPs"`

	// MeterProvider overrides the global meter provider when Enabled.
	MeterProvider metric.MeterProvider `yaml:"-"`

	// TracerProvider overrides the global tracer provider when Enabled.
	TracerProvider trace.TracerProvider `yaml:"-"`

	// Resource allows custom resource attributes.
	// If nil, a resource is created with service name and version.
	Resource *resource.Resource `yaml:"-"`
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	sessionMeter  metric.Meter
	securityMeter metric.Meter
	activityMeter metric.Meter
	reaperMeter   metric.Meter
	httpMeter     metric.Meter
	gaugeMeter    metric.Meter

	metrics *Metrics

	mu            sync.Mutex
	registrations []metric.Registration
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		inst.meterProvider = config.MeterProvider
		if inst.meterProvider == nil {
			inst.meterProvider = otel.GetMeterProvider()
		}
		inst.tracerProvider = config.TracerProvider
		if inst.tracerProvider == nil {
			inst.tracerProvider = otel.GetTracerProvider()
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	inst.sessionMeter = inst.Meter("session")
	inst.securityMeter = inst.Meter("security")
	inst.activityMeter = inst.Meter("activity")
	inst.reaperMeter = inst.Meter("reaper")
	inst.httpMeter = inst.Meter("http")
	inst.gaugeMeter = inst.Meter("gauges")

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// Shutdown unregisters gauge callbacks. The providers themselves belong to
// the caller and are not shut down here.
func (i *Instrumentation) Shutdown(_ context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		for _, reg := range i.registrations {
			if err := reg.Unregister(); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
		i.registrations = nil
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope
// Scopes are layer names like "session", "security", "activity", "reaper", "http".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Resource returns the service resource
func (i *Instrumentation) Resource() *resource.Resource {
	return i.resource
}

// ShouldLogClientIPs returns whether client IP addresses should be attached to spans
func (i *Instrumentation) ShouldLogClientIPs() bool {
	return i.config.LogClientIPs
}

// SizeCallback returns the current size of a store
type SizeCallback func() int64

// ObserveSize registers fn as the source of an observable gauge.
// Stores call this from SetInstrumentation with a lock-free counter.
// All gauges in Metrics are created by the same meter the callback is
// registered on, as the SDK requires.
func (i *Instrumentation) ObserveSize(gauge metric.Int64ObservableGauge, fn SizeCallback, attrs ...attribute.KeyValue) error {
	if gauge == nil || fn == nil {
		return fmt.Errorf("gauge and callback are required")
	}

	opt := metric.WithAttributes(attrs...)

	reg, err := i.gaugeMeter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(gauge, fn(), opt)
			return nil
		},
		gauge,
	)
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.registrations = append(i.registrations, reg)
	i.mu.Unlock()
	return nil
}
