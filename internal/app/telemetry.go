package app

import (
	"context"
	"fmt"

	"github.com/brianly1003/wahub/internal/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const (
	serviceName = "wahub"
	meterName   = "github.com/brianly1003/wahub"
)

// initMeter installs an OTLP/HTTP meter provider as the global provider.
// The returned provider must be shut down on exit to flush the last export.
func initMeter(ctx context.Context, cfg config.MetricsConfig, version string) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.Interval() > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval()))
	}

	mp := newMeterProvider(version, sdkmetric.NewPeriodicReader(exporter, readerOpts...))
	otel.SetMeterProvider(mp)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Dur("interval", cfg.Interval()).
		Msg("metrics export enabled")

	return mp, nil
}

func newMeterProvider(version string, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	)
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
}

// shutdownMeter flushes and stops the meter provider, if any.
func (a *App) shutdownMeter(ctx context.Context) error {
	if a.meterProvider == nil {
		return nil
	}
	err := a.meterProvider.Shutdown(ctx)
	a.meterProvider = nil
	return err
}
