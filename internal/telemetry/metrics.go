package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

var (
	metricsOnce    sync.Once
	metricsMu      sync.Mutex
	defaultMetrics *Metrics
	meterProvider  *sdkmetric.MeterProvider

	// File exporter for local-otel
	fileExporter *FileMetricsExporter
)

// Metrics groups the Prometheus collectors of the client and the reference
// backend. Each instance owns its registry so tests and short-lived CLI runs
// can gather or push exactly what they recorded.
type Metrics struct {
	registry *prometheus.Registry

	// Client metrics
	clientRequestsTotal   *prometheus.CounterVec
	clientRequestDuration *prometheus.HistogramVec
	clientRetriesTotal    *prometheus.CounterVec
	sessionEventsTotal    *prometheus.CounterVec

	// API metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	catalogueSize       prometheus.Gauge

	// System metrics
	serviceUp prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		clientRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_client_requests_total",
			Help: "Total number of catalogue calls by outcome",
		}, []string{"method", "route", "outcome"}),

		clientRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shelf_client_request_duration_seconds",
			Help:    "Duration of catalogue calls in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		clientRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_client_retries_total",
			Help: "Total number of re-attempts after transient failures",
		}, []string{"method", "route"}),

		sessionEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_session_events_total",
			Help: "Total number of session transitions by type",
		}, []string{"type"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		catalogueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shelf_catalogue_products",
			Help: "Number of products held by the reference backend",
		}),

		serviceUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "service_up",
			Help: "Whether the service is up (1) or down (0)",
		}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// InitMetrics initializes the process-wide metrics
func InitMetrics(cfg *Config) error {
	var err error
	metricsOnce.Do(func() {
		m := DefaultMetrics()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		// Initialize OpenTelemetry metrics if enabled
		if cfg.EnableMetrics {
			err = initOTELMetrics(cfg)
		}

		if cfg.ExportToFile && cfg.MetricsFilePath != "" {
			fileExporter = &FileMetricsExporter{
				filePath: cfg.MetricsFilePath,
				gatherer: m.registry,
				metrics:  make(map[string]interface{}),
			}
			go fileExporter.startPeriodicExport(time.Duration(cfg.MetricsInterval) * time.Second)
		}

		m.serviceUp.Set(1)
	})
	return err
}

// DefaultMetrics returns the process-wide metrics, creating them on first use
func DefaultMetrics() *Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = NewMetrics()
	}
	return defaultMetrics
}

func initOTELMetrics(cfg *Config) error {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	// File export mode keeps the Prometheus registry as the only sink
	if cfg.ExportToFile {
		return nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(cfg.MetricsInterval)*time.Second),
			),
		),
	)
	otel.SetMeterProvider(meterProvider)
	return nil
}

// CloseMetrics flushes and stops the OTel meter provider
func CloseMetrics(ctx context.Context) error {
	if meterProvider == nil {
		return nil
	}
	return meterProvider.Shutdown(ctx)
}

// Push sends every collector of m to a Prometheus Pushgateway under job
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is empty")
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// FileMetricsExporter exports metrics to a file for local-otel integration
type FileMetricsExporter struct {
	mu       sync.Mutex
	filePath string
	gatherer prometheus.Gatherer
	metrics  map[string]interface{}
}

func (f *FileMetricsExporter) startPeriodicExport(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := f.export(); err != nil {
			WithError(err).Error("Failed to export metrics to file")
		}
	}
}

func (f *FileMetricsExporter) export() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.updateMetrics(); err != nil {
		return err
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(f.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	return encoder.Encode(f.metrics)
}

// updateMetrics flattens counters and gauges into name{labels} keys
func (f *FileMetricsExporter) updateMetrics() error {
	families, err := f.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	f.metrics = map[string]interface{}{"timestamp": time.Now().Unix()}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value, ok := scalarValue(family.GetType(), metric)
			if !ok {
				continue
			}
			f.metrics[seriesName(family.GetName(), metric)] = value
		}
	}
	return nil
}

func scalarValue(kind dto.MetricType, metric *dto.Metric) (float64, bool) {
	switch kind {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue(), true
	case dto.MetricType_HISTOGRAM:
		return float64(metric.GetHistogram().GetSampleCount()), true
	}
	return 0, false
}

func seriesName(name string, metric *dto.Metric) string {
	if len(metric.GetLabel()) == 0 {
		return name
	}
	pairs := make([]string, 0, len(metric.GetLabel()))
	for _, label := range metric.GetLabel() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// Metric recording functions

// RecordClientRequest records one finished catalogue call
func (m *Metrics) RecordClientRequest(method, path, outcome string, duration time.Duration) {
	route := RouteLabel(path)
	m.clientRequestsTotal.WithLabelValues(method, route, outcome).Inc()
	m.clientRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordClientRetry records a re-attempt
func (m *Metrics) RecordClientRetry(method, path string) {
	m.clientRetriesTotal.WithLabelValues(method, RouteLabel(path)).Inc()
}

// RecordSessionEvent records a session transition
func (m *Metrics) RecordSessionEvent(eventType string) {
	m.sessionEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records an HTTP request served by the backend
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateCatalogueSize updates the product count of the backend
func (m *Metrics) UpdateCatalogueSize(count int) {
	m.catalogueSize.Set(float64(count))
}

// productActions are the fixed segments under /products
var productActions = map[string]bool{
	"page":   true,
	"search": true,
	"batch":  true,
	"export": true,
	"import": true,
}

// RouteLabel collapses product ids so label cardinality stays bounded:
// /products/42 becomes /products/:id.
func RouteLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	rest, ok := strings.CutPrefix(path, "/products/")
	if !ok || rest == "" || productActions[rest] {
		return path
	}
	return "/products/:id"
}
