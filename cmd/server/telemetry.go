package main

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type telemetryStack struct {
	traces  *telemetry.TracerProvider
	metrics *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
	meter   metric.Meter
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	tc := cfg.Telemetry
	traces, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		_ = metrics.Shutdown(ctx)
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	return &telemetryStack{
		traces:  traces,
		metrics: metrics,
		logs:    logs,
		meter:   metrics.Meter(telemetry.MeterName),
	}, nil
}

// shutdown flushes logs last so the other providers can still report
func (t *telemetryStack) shutdown(ctx context.Context, log *zap.Logger) {
	if err := errors.Join(t.traces.Shutdown(ctx), t.metrics.Shutdown(ctx)); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		log.Error("Log export shutdown failed", zap.Error(err))
	}
}
