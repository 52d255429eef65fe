package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/telemetry"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	metric, err := c.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	require.NoError(t, metric.Write(m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	metric, err := g.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	require.NoError(t, metric.Write(m))
	return m.GetGauge().GetValue()
}

func TestRecordFrameParsedIncrementsCounter(t *testing.T) {
	reg := telemetry.NewRegistry(prometheus.NewRegistry())
	reg.RecordFrameParsed("binance")
	reg.RecordFrameParsed("binance")
	assert.Equal(t, float64(2), counterValue(t, reg.FramesParsed, "binance"))
}

func TestRecordReconnectLabelsByReason(t *testing.T) {
	reg := telemetry.NewRegistry(prometheus.NewRegistry())
	reg.RecordReconnect("bybit", "idle_timeout")
	reg.RecordReconnect("bybit", "stream_rx")
	assert.Equal(t, float64(1), counterValue(t, reg.Reconnects, "bybit", "idle_timeout"))
	assert.Equal(t, float64(1), counterValue(t, reg.Reconnects, "bybit", "stream_rx"))
}

func TestRecordPairRemovedIncrementsCounter(t *testing.T) {
	reg := telemetry.NewRegistry(prometheus.NewRegistry())
	reg.RecordPairRemoved("okex")
	assert.Equal(t, float64(1), counterValue(t, reg.PairsRemoved, "okex"))
}

func TestSetQueueDepthSetsGaugeValue(t *testing.T) {
	reg := telemetry.NewRegistry(prometheus.NewRegistry())
	reg.SetQueueDepth(42)
	m := &dto.Metric{}
	require.NoError(t, reg.QueueDepth.Write(m))
	assert.Equal(t, float64(42), m.GetGauge().GetValue())
}

func TestSetStreamRetryCountPerExchange(t *testing.T) {
	reg := telemetry.NewRegistry(prometheus.NewRegistry())
	reg.SetStreamRetryCount("kucoin", 3)
	assert.Equal(t, float64(3), gaugeValue(t, reg.StreamRetries, "kucoin"))
}
