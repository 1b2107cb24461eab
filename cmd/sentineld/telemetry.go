package main

import (
	"context"
	"fmt"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/giantswarm/sentinel/instrumentation"
)

// telemetry owns the meter provider backing the Prometheus exporter.
type telemetry struct {
	inst     *instrumentation.Instrumentation
	provider *sdkmetric.MeterProvider
}

// newTelemetry creates the instrumentation. With metrics off it is a no-op
// instrumentation and nothing is registered with Prometheus.
func newTelemetry(cfg instrumentation.Config, metrics bool) (*telemetry, error) {
	t := &telemetry{}
	cfg.Enabled = metrics || cfg.Enabled

	if metrics {
		exporter, err := otelprom.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		cfg.MeterProvider = t.provider
	}

	inst, err := instrumentation.New(cfg)
	if err != nil {
		return nil, err
	}
	t.inst = inst
	return t, nil
}

func (t *telemetry) Shutdown(ctx context.Context) error {
	if err := t.inst.Shutdown(ctx); err != nil {
		return err
	}
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}
