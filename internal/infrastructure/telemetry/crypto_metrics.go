package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// CryptoMetrics counts envelope operations and their latency. Labels carry
// the operation and algorithm only, never key ids or ciphertext.
type CryptoMetrics struct {
	operations *Counter
	failures   *Counter
	duration   *Histogram
}

// NewCryptoMetrics registers the crypto instruments on meter
func NewCryptoMetrics(meter metric.Meter) (*CryptoMetrics, error) {
	operations, err := NewCounter(meter, "crm_crypto_operations_total", "Envelope operations performed", "{operation}")
	if err != nil {
		return nil, err
	}
	failures, err := NewCounter(meter, "crm_crypto_failures_total", "Envelope operations that failed", "{operation}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, "crm_crypto_operation_duration_seconds", "Envelope operation latency", "s", DurationBuckets)
	if err != nil {
		return nil, err
	}
	return &CryptoMetrics{operations: operations, failures: failures, duration: duration}, nil
}

// RecordOperation records one operation such as "encrypt" or "decrypt"
func (m *CryptoMetrics) RecordOperation(ctx context.Context, operation, algorithm string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.Inc(ctx, AttrOperation.String(operation), AttrAlgorithm.String(algorithm), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, elapsed, AttrOperation.String(operation), AttrAlgorithm.String(algorithm))
	if err != nil {
		m.failures.Inc(ctx, AttrOperation.String(operation), AttrAlgorithm.String(algorithm))
	}
}
