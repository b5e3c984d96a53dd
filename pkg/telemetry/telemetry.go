// Package telemetry installs OpenTelemetry tracer and meter providers that
// export to rotating files under the medibot data directory.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// ServiceName is the resource service name.
	ServiceName = "medibot"

	traceFileName  = "medibot_traces.log"
	metricFileName = "medibot_metrics.log"
)

// Config configures telemetry export.
type Config struct {
	Enabled bool

	// Dir receives the trace and metric files.
	Dir string

	ServiceVersion string

	// MetricInterval defaults to 10s.
	MetricInterval time.Duration
}

// Shutdown flushes exporters and closes files.
type Shutdown func(ctx context.Context) error

// Setup installs global providers. When telemetry is disabled the global
// no-op providers stay in place and the returned Shutdown does nothing.
func Setup(ctx context.Context, c Config, logger *slog.Logger) (Shutdown, error) {
	if !c.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if c.Dir == "" {
		return nil, errors.New("telemetry directory is required")
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = 10 * time.Second
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(c.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	traceFile := rotatingFile(filepath.Join(c.Dir, traceFileName))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricFile := rotatingFile(filepath.Join(c.Dir, metricFileName))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricFile))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			metricExporter,
			sdkmetric.WithInterval(c.MetricInterval),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger.Info("telemetry enabled", "dir", c.Dir)

	return func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			traceFile.Close(),
			metricFile.Close(),
		)
	}, nil
}

func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
