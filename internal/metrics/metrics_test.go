package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/presence/internal/metrics"
)

func TestGatherStats(t *testing.T) {
	t.Parallel()

	const service = "presence-metrics-test"

	metrics.ReconcileTotal.WithLabelValues(service).Add(3)
	metrics.ReconcileDuration.WithLabelValues(service).Observe(0.2)
	metrics.ReconcileDuration.WithLabelValues(service).Observe(0.4)
	metrics.FeedFailuresTotal.WithLabelValues(service, "wireless").Add(2)
	metrics.DevicesGauge.WithLabelValues(service, "wifi").Set(4)
	metrics.DevicesGauge.WithLabelValues(service, "wired").Set(1)
	metrics.AnnotationWritesTotal.WithLabelValues(service, "set_label", "success").Add(5)
	metrics.AnnotationWritesTotal.WithLabelValues(service, "set_label", "error").Inc()
	metrics.ReadyGauge.WithLabelValues(service).Set(1)

	s, err := metrics.GatherStats(service)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, s.ReconcilePassesTotal, 0.001)
	assert.InDelta(t, 0.3, s.ReconcileAvgSeconds, 0.001)
	assert.InDelta(t, 2.0, s.FeedFailuresTotal["wireless"], 0.001)
	assert.InDelta(t, 4.0, s.DevicesWifi, 0.001)
	assert.InDelta(t, 1.0, s.DevicesWired, 0.001)
	assert.InDelta(t, 6.0, s.AnnotationWritesTotal, 0.001)
	assert.InDelta(t, 1.0, s.AnnotationWriteErrors, 0.001)
	assert.InDelta(t, 1.0, s.ServiceReady, 0.001)
}

func TestGatherStatsUnknownService(t *testing.T) {
	t.Parallel()

	s, err := metrics.GatherStats("nobody")
	require.NoError(t, err)

	assert.Zero(t, s.ReconcilePassesTotal)
	assert.Empty(t, s.FeedFailuresTotal)
}

func TestServiceDefault(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, metrics.Service())
}

func TestHelpersDoNotPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		metrics.RegisterCollectors()
		metrics.RegisterCollectors()
		metrics.BindService()
		metrics.ObservePass(50*time.Millisecond, 2, 1)
		metrics.IncFeedFailure("")
		metrics.RecordAnnotationWrite("set_icon", true)
		metrics.RecordCoalesced()
		metrics.RecordIconLookup(true)
		metrics.RecordHTTP("GET", "/api/v1/devices", 200)
	})
}

func TestRecordHTTPCountsRequests(t *testing.T) {
	t.Parallel()

	counter := metrics.HTTPRequestsTotal.WithLabelValues(metrics.Service(), "PUT", "/api/v1/settings/show-all", "429")
	before := counterValue(t, counter)

	metrics.RecordHTTP("PUT", "/api/v1/settings/show-all", 429)
	metrics.RecordHTTP("PUT", "/api/v1/settings/show-all", 429)

	assert.InDelta(t, before+2, counterValue(t, counter), 0.001)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))

	return m.GetCounter().GetValue()
}
