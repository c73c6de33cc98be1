package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Init initializes all telemetry components
func Init(cfg *Config) error {
	// Initialize logger
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize metrics
	if err := InitMetrics(cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Initialize tracing
	if err := InitTracing(cfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	WithFields(logrus.Fields{
		"service":      cfg.ServiceName,
		"version":      cfg.ServiceVersion,
		"environment":  cfg.Environment,
		"exportToFile": cfg.ExportToFile,
	}).Info("Telemetry initialized")

	return nil
}

// Shutdown gracefully shuts down all telemetry components
func Shutdown(ctx context.Context) error {
	if err := CloseTracing(ctx); err != nil {
		WithError(err).Error("Failed to close tracing")
	}

	if err := CloseMetrics(ctx); err != nil {
		WithError(err).Error("Failed to close metrics")
	}

	if err := CloseLogger(); err != nil {
		WithError(err).Error("Failed to close logger")
	}

	return nil
}

// PrometheusHandler returns an HTTP handler serving the collectors of m
func PrometheusHandler(m *Metrics) http.Handler {
	return promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{Registry: m.Registry()})
}

// FiberPrometheusHandler serves the collectors of m from a fiber route
func FiberPrometheusHandler(m *Metrics) fiber.Handler {
	return adaptor.HTTPHandler(PrometheusHandler(m))
}

// FiberMetricsMiddleware returns a Fiber middleware for recording HTTP metrics
func FiberMetricsMiddleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), fiberHeaderCarrier{c})
		ctx, span := StartSpan(ctx, fmt.Sprintf("%s %s", c.Method(), c.Path()),
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.SetUserContext(ctx)

		err := c.Next()

		// Route templates keep product ids out of the label set
		endpoint := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		m.RecordHTTPRequest(c.Method(), endpoint, strconv.Itoa(status), time.Since(start))

		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Method()),
			semconv.HTTPTargetKey.String(c.Path()),
			semconv.HTTPRouteKey.String(endpoint),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		if err != nil {
			RecordError(ctx, err)
			SetErrorStatus(ctx, err.Error())
		} else if status >= 400 {
			SetErrorStatus(ctx, fmt.Sprintf("HTTP %d", status))
		} else {
			SetOKStatus(ctx)
		}

		return err
	}
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging
func FiberLoggingMiddleware(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.IP(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
		}
		if id := c.Get(fiber.HeaderXRequestID); id != "" {
			fields["request_id"] = id
		}
		if span := trace.SpanFromContext(c.UserContext()); span.SpanContext().IsValid() {
			fields["trace.id"] = span.SpanContext().TraceID().String()
			fields["span.id"] = span.SpanContext().SpanID().String()
		}
		entry := log.WithFields(fields)

		if err != nil {
			entry.WithError(err).Error("Request failed")
		} else if c.Response().StatusCode() >= 400 {
			entry.Warn("Request completed with error status")
		} else {
			entry.Info("Request completed")
		}

		return err
	}
}

// fiberHeaderCarrier reads propagation headers from a fiber request
type fiberHeaderCarrier struct {
	c *fiber.Ctx
}

func (f fiberHeaderCarrier) Get(key string) string { return f.c.Get(key) }

func (f fiberHeaderCarrier) Set(key, value string) { f.c.Request().Header.Set(key, value) }

func (f fiberHeaderCarrier) Keys() []string {
	keys := make([]string, 0)
	f.c.Request().Header.VisitAll(func(key, _ []byte) {
		keys = append(keys, string(key))
	})
	return keys
}
