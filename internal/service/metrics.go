package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"wallet-ledger/internal/errors"
)

const meterName = "wallet-ledger/service"

const (
	opDeposit   = "deposit"
	opTransfer  = "transfer"
	opReverse   = "reverse"
	opStatement = "statement"
)

type metrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

func newMetrics(meter metric.Meter, logger *slog.Logger) *metrics {
	m := &metrics{
		operations: noop.Int64Counter{},
		duration:   noop.Float64Histogram{},
	}

	operations, err := meter.Int64Counter("wallet.operations",
		metric.WithDescription("Wallet operations by outcome"))
	if err != nil {
		logger.Warn("Failed to create operations counter", "error", err)
	} else {
		m.operations = operations
	}

	duration, err := meter.Float64Histogram("wallet.operation.duration",
		metric.WithDescription("Wallet operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("Failed to create duration histogram", "error", err)
	} else {
		m.duration = duration
	}

	return m
}

// record counts one finished operation. outcome is "success" or the error code.
func (m *metrics) record(ctx context.Context, op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(errors.AsAppError(err).Code)
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
