package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

const dbMetricsStartKey = "telemetry:db_metrics_start"

// DBMetrics reports connection pool state and query latency
type DBMetrics struct {
	queryTotal    *Counter
	queryDuration *Histogram
	registration  metric.Registration
}

// NewDBMetrics registers pool gauges read from sqlDB on every collection
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB) (*DBMetrics, error) {
	queryTotal, err := NewCounter(meter, "crm_db_query_total", "Database statements executed", "{query}")
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, "crm_db_query_duration_seconds", "Database statement latency", "s", DurationBuckets)
	if err != nil {
		return nil, err
	}

	inUse, err := meter.Int64ObservableGauge("crm_db_pool_connections_in_use", metric.WithDescription("Connections currently in use"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool gauge: %w", err)
	}
	idle, err := meter.Int64ObservableGauge("crm_db_pool_connections_idle", metric.WithDescription("Idle connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool gauge: %w", err)
	}
	maxOpen, err := meter.Int64ObservableGauge("crm_db_pool_connections_max", metric.WithDescription("Maximum open connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool gauge: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(idle, int64(stats.Idle))
		o.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections))
		return nil
	}, inUse, idle, maxOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to register pool callback: %w", err)
	}

	return &DBMetrics{queryTotal: queryTotal, queryDuration: queryDuration, registration: reg}, nil
}

// Register installs query callbacks on db
func (m *DBMetrics) Register(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		name   string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		if err := s.before("telemetry:metrics_before_"+s.name, m.before); err != nil {
			return fmt.Errorf("failed to register %s metrics callback: %w", s.name, err)
		}
		if err := s.after("telemetry:metrics_after_"+s.name, m.after(s.name)); err != nil {
			return fmt.Errorf("failed to register %s metrics callback: %w", s.name, err)
		}
	}
	return nil
}

// Unregister stops pool collection
func (m *DBMetrics) Unregister() error {
	return m.registration.Unregister()
}

func (m *DBMetrics) before(db *gorm.DB) {
	db.InstanceSet(dbMetricsStartKey, time.Now())
}

func (m *DBMetrics) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		attrs := []attribute.KeyValue{
			AttrOperation.String(operation),
			attribute.String("table", db.Statement.Table),
		}
		m.queryTotal.Inc(ctx, attrs...)
		if v, ok := db.InstanceGet(dbMetricsStartKey); ok {
			if start, ok := v.(time.Time); ok {
				m.queryDuration.RecordDuration(ctx, time.Since(start), attrs...)
			}
		}
	}
}
