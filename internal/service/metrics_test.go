package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOperationMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	f := newFixture(t, DefaultPolicy(), WithMeter(provider.Meter("test")))
	f.open(t, 1, "10")
	f.open(t, 2, "0")

	_, err := f.wallet.Deposit(ctx, 1, dec("5"))
	require.NoError(t, err)
	_, err = f.wallet.Transfer(ctx, 1, 2, dec("100"))
	require.Error(t, err)
	_, err = f.statements.Statement(ctx, 1, "")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	var sawHistogram bool
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if m.Name != "wallet.operations" {
					continue
				}
				for _, dp := range data.DataPoints {
					op, _ := dp.Attributes.Value("operation")
					outcome, _ := dp.Attributes.Value("outcome")
					counts[op.AsString()+"/"+outcome.AsString()] += dp.Value
				}
			case metricdata.Histogram[float64]:
				if m.Name == "wallet.operation.duration" {
					sawHistogram = true
				}
			}
		}
	}

	assert.Equal(t, map[string]int64{
		"deposit/success":             1,
		"transfer/insufficient_funds": 1,
		"statement/success":           1,
	}, counts)
	assert.True(t, sawHistogram)
}
