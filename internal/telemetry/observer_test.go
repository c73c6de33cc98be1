package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/birbparty/shelf/sdk"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestObserver(t *testing.T) (*Observer, *Metrics, *sdkmetric.ManualReader, *logtest.Hook) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	m := NewMetrics()
	obs, err := NewObserver(m, provider.Meter("test"), log)
	require.NoError(t, err)
	return obs, m, reader, hook
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestObserver_RequestOutcomes(t *testing.T) {
	obs, m, reader, _ := newTestObserver(t)

	obs.OnRequestStart("GET", "/products/page")
	obs.OnRequestEnd("GET", "/products/page", 12*time.Millisecond, nil)
	obs.OnRequestEnd("DELETE", "/products/7", time.Millisecond, sdk.NewError(sdk.FailureAuth, "unauthorized"))
	obs.OnRequestEnd("DELETE", "/products/8", time.Millisecond, sdk.NewError(sdk.FailureAuth, "unauthorized"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.clientRequestsTotal.WithLabelValues("GET", "/products/page", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.clientRequestsTotal.WithLabelValues("DELETE", "/products/:id", "auth")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.clientRequestDuration))
	assert.Equal(t, int64(3), sumOf(t, reader, "shelf.client.calls"))
}

func TestObserver_Retries(t *testing.T) {
	obs, m, reader, _ := newTestObserver(t)

	cause := sdk.NewError(sdk.FailureTransient, "no response")
	obs.OnRetryAttempt("POST", "/auth/register", 1, time.Second, cause)
	obs.OnRetryAttempt("POST", "/auth/register", 2, time.Second, cause)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.clientRetriesTotal.WithLabelValues("POST", "/auth/register")))
	assert.Equal(t, int64(2), sumOf(t, reader, "shelf.client.retries"))
}

func TestObserver_SessionEvents(t *testing.T) {
	obs, m, reader, hook := newTestObserver(t)

	obs.OnSessionEvent(sdk.SessionEvent{Type: sdk.SessionLogin, At: time.Now()})
	obs.OnSessionEvent(sdk.SessionEvent{Type: sdk.SessionExpired, Path: "/products/page", At: time.Now()})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionEventsTotal.WithLabelValues("login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionEventsTotal.WithLabelValues("expired")))
	assert.Equal(t, int64(2), sumOf(t, reader, "shelf.session.events"))

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, "/products/page", last.Data["path"])
}

func TestObserver_InsideComposite(t *testing.T) {
	obs, m, _, _ := newTestObserver(t)
	collector := sdk.NewMetricsCollector()
	composite := sdk.NewCompositeObserver(collector, obs)

	composite.OnRetryAttempt("GET", "/ping", 1, 0, nil)
	assert.Equal(t, int64(1), collector.Retries("GET", "/ping"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clientRetriesTotal.WithLabelValues("GET", "/ping")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "canceled", Outcome(sdk.NewError(sdk.FailureCanceled, "stopped")))
	assert.Equal(t, "unknown", Outcome(assert.AnError))
}
