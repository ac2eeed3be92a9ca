// Package telemetry installs the OpenTelemetry meter provider used by the
// stage executor, the side-effect dispatcher and the AI advisor.
//
// Telemetry is off unless enabled in config. When off, a no-op provider is
// installed and instruments cost nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Options selects the exporters.
type Options struct {
	Enabled bool
	// Stdout periodically prints metrics to stdout.
	Stdout bool
	// Interval between stdout exports. Defaults to 15s.
	Interval time.Duration

	ServiceName string
	Version     string
}

// ShutdownFunc flushes pending metrics and stops the provider.
type ShutdownFunc func(context.Context) error

// Init installs the global meter provider. Callers must invoke the returned
// ShutdownFunc before exiting.
func Init(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}

	mp, err := NewMeterProvider(ctx, opts)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// NewMeterProvider builds an SDK meter provider without installing it.
func NewMeterProvider(ctx context.Context, opts Options, readers ...sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "business-os-backend"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", opts.ServiceName),
			attribute.String("service.version", opts.Version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	// Host and process detectors may report a partial resource in minimal
	// containers; the attributes they did find are still usable.
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Stdout {
		interval := opts.Interval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
		}
		mopts = append(mopts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval)),
		))
	}
	for _, r := range readers {
		mopts = append(mopts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(mopts...), nil
}
