package telemetry

import (
	"context"
	"time"

	"github.com/birbparty/shelf/sdk"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/birbparty/shelf/internal/telemetry"

// Observer exports client activity as Prometheus series, OTel counters and
// log lines. Spans are started by the client itself.
type Observer struct {
	metrics *Metrics
	logger  logrus.FieldLogger

	calls    metric.Int64Counter
	retries  metric.Int64Counter
	sessions metric.Int64Counter
}

var _ sdk.Observer = (*Observer)(nil)

// NewObserver creates an Observer. A nil meter uses the global meter provider
// and a nil logger uses L().
func NewObserver(metrics *Metrics, meter metric.Meter, logger logrus.FieldLogger) (*Observer, error) {
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	if logger == nil {
		logger = L()
	}

	calls, err := meter.Int64Counter("shelf.client.calls",
		metric.WithDescription("Catalogue calls by outcome"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("shelf.client.retries",
		metric.WithDescription("Re-attempts after transient failures"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64Counter("shelf.session.events",
		metric.WithDescription("Session transitions by type"))
	if err != nil {
		return nil, err
	}

	return &Observer{
		metrics:  metrics,
		logger:   logger,
		calls:    calls,
		retries:  retries,
		sessions: sessions,
	}, nil
}

// OnRequestStart logs the call
func (o *Observer) OnRequestStart(method, path string) {
	o.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("Catalogue call started")
}

// OnRequestEnd records the call outcome
func (o *Observer) OnRequestEnd(method, path string, duration time.Duration, err error) {
	outcome := Outcome(err)
	o.metrics.RecordClientRequest(method, path, outcome, duration)
	o.calls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", RouteLabel(path)),
		attribute.String("outcome", outcome),
	))

	entry := o.logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"outcome":  outcome,
		"duration": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Debug("Catalogue call failed")
		return
	}
	entry.Debug("Catalogue call completed")
}

// OnRetryAttempt counts the re-attempt
func (o *Observer) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	o.metrics.RecordClientRetry(method, path)
	o.retries.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", RouteLabel(path)),
	))
}

// OnSessionEvent counts the transition and logs expiries
func (o *Observer) OnSessionEvent(event sdk.SessionEvent) {
	o.metrics.RecordSessionEvent(string(event.Type))
	o.sessions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("type", string(event.Type)),
	))

	entry := o.logger.WithField("event", event.Type)
	if event.Type == sdk.SessionExpired {
		entry.WithField("path", event.Path).Warn("Session expired")
		return
	}
	entry.Info("Session changed")
}

// Outcome names the result of a call for metric labels: "ok" or the failure
// kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return sdk.KindOf(err).String()
}
