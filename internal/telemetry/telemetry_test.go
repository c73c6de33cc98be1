package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORT_TO_FILE", "true")
	t.Setenv("OTEL_SAMPLING_RATE", "0.25")
	t.Setenv("SHELF_PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("ENABLE_TRACING", "not-a-bool")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "shelf", cfg.ServiceName)
	assert.True(t, cfg.ExportToFile)
	assert.Equal(t, "/tmp/shelf/otel/traces.json", cfg.TracesFilePath)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.InDelta(t, 0.25, cfg.SamplingRate, 1e-9)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.Equal(t, "shelf", cfg.PushJob)
	assert.True(t, cfg.EnableTracing, "unparsable flags keep their default")
}

func TestQuietConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENABLE_METRICS", "")
	cfg := QuietConfig()
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.EnableMetrics)
	assert.False(t, cfg.EnableTracing)
}

func TestNewLogger_JSONLayout(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{LogLevel: "debug"}, &buf)

	log.WithField("path", "/products").Debug("dispatch")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatch", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "/products", line["path"])
	assert.Contains(t, line, "@timestamp")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := NewLogger(&Config{LogLevel: "chatty"}, io.Discard)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestWithContext_AddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "GET /products/page")
	defer span.End()

	entry := WithContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace.id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span.id"])

	assert.NotContains(t, WithContext(context.Background()).Data, "trace.id")
}

func TestGlobalEntryHelpers(t *testing.T) {
	var buf bytes.Buffer
	saved := logger
	logger = NewLogger(&Config{LogLevel: "info"}, &buf).WithField("service.name", "shelf")
	t.Cleanup(func() { logger = saved })

	WithFields(logrus.Fields{"addr": ":8080"}).Info("listening")
	WithError(errors.New("disk full")).Error("export failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, ":8080", first["addr"])
	assert.Equal(t, "shelf", first["service.name"])
	assert.Equal(t, "disk full", second[logrus.ErrorKey])
	assert.Equal(t, "shelf", second["service.name"])
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shelf.json")
	hook, err := NewFileLogger(path)
	require.NoError(t, err)

	log := NewLogger(&Config{LogLevel: "info"}, io.Discard)
	log.AddHook(hook)
	log.WithError(errors.New("backend unreachable")).Error("call failed")
	require.NoError(t, hook.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "call failed", line["message"])
	assert.Equal(t, "backend unreachable", line[logrus.ErrorKey])
}

func TestMetrics_Push(t *testing.T) {
	var method, path string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	m := NewMetrics()
	m.RecordSessionEvent("login")
	require.NoError(t, m.Push(context.Background(), gateway.URL, "shelf-cli"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/shelf-cli", path)

	assert.Error(t, m.Push(context.Background(), "", "shelf-cli"))
}

func TestFileMetricsExporter(t *testing.T) {
	m := NewMetrics()
	m.RecordSessionEvent("login")
	m.RecordSessionEvent("login")
	m.UpdateCatalogueSize(3)

	path := filepath.Join(t.TempDir(), "metrics.json")
	exporter := &FileMetricsExporter{filePath: path, gatherer: m.Registry()}
	require.NoError(t, exporter.export())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, 2.0, snapshot[`shelf_session_events_total{type="login"}`])
	assert.Equal(t, 3.0, snapshot["shelf_catalogue_products"])
	assert.Contains(t, snapshot, "timestamp")
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/products":            "/products",
		"/products/page":       "/products/page",
		"/products/batch":      "/products/batch",
		"/products/42":         "/products/:id",
		"/products/a%2Fb":      "/products/:id",
		"/products/search?q=x": "/products/search",
		"/users/login":         "/users/login",
	}
	for in, want := range tests {
		assert.Equal(t, want, RouteLabel(in), in)
	}
}

func TestFiberMetricsMiddleware(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(FiberMetricsMiddleware(m))
	app.Get("/products/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "missing" {
			return fiber.ErrNotFound
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/metrics", FiberPrometheusHandler(m))

	for _, id := range []string{"1", "2", "missing"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/products/"+id, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/products/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/products/:id", "404")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `http_requests_total{endpoint="/products/:id",method="GET",status="204"} 2`))
}

func TestFiberLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{LogLevel: "info"}, &buf)

	app := fiber.New()
	app.Use(FiberLoggingMiddleware(log))
	app.Get("/products/page", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"code": 401})
	})

	req := httptest.NewRequest(http.MethodGet, "/products/page", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "/products/page", line["path"])
	assert.Equal(t, 401.0, line["status"])
	assert.Equal(t, "req-1", line["request_id"])
}

func TestNewTracerProvider_FileExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	tp, err := NewTracerProvider(context.Background(), &Config{
		ServiceName:    "shelf-test",
		ExportToFile:   true,
		TracesFilePath: path,
		SamplingRate:   1.0,
	})
	require.NoError(t, err)

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET /products")
	_, child := tp.Tracer("test").Start(ctx, "attempt")
	child.End()
	span.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tp.Shutdown(shutdownCtx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	spans := make(map[string]FileSpan)
	for _, line := range lines {
		var s FileSpan
		require.NoError(t, json.Unmarshal([]byte(line), &s))
		spans[s.Name] = s
	}
	require.Contains(t, spans, "GET /products")
	require.Contains(t, spans, "attempt")
	assert.Equal(t, spans["GET /products"].SpanID, spans["attempt"].ParentID)
	assert.Equal(t, spans["GET /products"].TraceID, spans["attempt"].TraceID)
}
