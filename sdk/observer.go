package sdk

import (
	"sync"
	"time"
)

// SessionEventType names a session lifecycle transition
type SessionEventType string

const (
	SessionLogin   SessionEventType = "login"
	SessionLogout  SessionEventType = "logout"
	SessionExpired SessionEventType = "expired"
)

// SessionEvent is emitted when the session is created, dropped by the user,
// or cleared after the backend rejected it.
type SessionEvent struct {
	Type SessionEventType `json:"type"`
	// Path is the request path that revealed an expired session
	Path string    `json:"path,omitempty"`
	At   time.Time `json:"at"`
}

// Observer provides hooks for monitoring client operations.
// Implement this interface to export metrics, trace calls or log activity.
//
// Observer methods are called synchronously from the calling goroutine and
// should return quickly.
//
// Example implementation:
//
//	type LogObserver struct {
//	    logger *log.Logger
//	}
//
//	func (o *LogObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
//	    if err != nil {
//	        o.logger.Printf("[ERROR] %s %s - %v (took %v)", method, path, err, duration)
//	    }
//	}
//
// Embed NoopObserver to implement only the hooks you need.
type Observer interface {
	// OnRequestStart is called once per call, before the request stages run.
	OnRequestStart(method, path string)

	// OnRequestEnd is called once per call after the response stages ran.
	// err is the error returned to the caller, nil on success.
	OnRequestEnd(method, path string, duration time.Duration, err error)

	// OnRetryAttempt is called before each re-attempt.
	//
	// Parameters:
	//   - attempt: re-attempt number (1, 2, 3...)
	//   - delay: wait before this re-attempt
	//   - err: the transient failure that triggered it
	OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error)

	// OnSessionEvent is called after the session changed.
	OnSessionEvent(event SessionEvent)
}

// NoopObserver is an observer that does nothing
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(method, path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {}

// OnRetryAttempt does nothing
func (n *NoopObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
}

// OnSessionEvent does nothing
func (n *NoopObserver) OnSessionEvent(event SessionEvent) {}

// MetricsCollector is a simple in-memory Observer counting requests, errors,
// retries and session events per endpoint. It is intended for debugging and
// tests; see internal/telemetry for the Prometheus exporter.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithBaseURL(url).WithObserver(metrics))
//
//	snapshot := metrics.GetMetrics()
//	fmt.Printf("Retries: %v\n", snapshot["retries"])
type MetricsCollector struct {
	mu            sync.RWMutex
	requestCount  map[string]int64
	latencies     map[string][]time.Duration
	errorCount    map[string]int64
	retryCount    map[string]int64
	sessionEvents map[SessionEventType]int64
}

// NewMetricsCollector creates a new metrics collector.
// The collector is thread-safe and can be used concurrently.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount:  make(map[string]int64),
		latencies:     make(map[string][]time.Duration),
		errorCount:    make(map[string]int64),
		retryCount:    make(map[string]int64),
		sessionEvents: make(map[SessionEventType]int64),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[method+" "+path]++
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[key]++
	}
}

// OnRetryAttempt increments retry count
func (m *MetricsCollector) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount[method+" "+path]++
}

// OnSessionEvent counts session transitions by type
func (m *MetricsCollector) OnSessionEvent(event SessionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionEvents[event.Type]++
}

// GetMetrics returns a snapshot of current metrics.
//
// The metrics include:
//   - "requests": map of "METHOD path" to call count
//   - "latencies": map of "METHOD path" to call durations
//   - "errors": map of "METHOD path" to failed call count
//   - "retries": map of "METHOD path" to re-attempt count
//   - "session_events": map of event type to count
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latenciesCopy := make(map[string][]time.Duration, len(m.latencies))
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}
	eventsCopy := make(map[SessionEventType]int64, len(m.sessionEvents))
	for k, v := range m.sessionEvents {
		eventsCopy[k] = v
	}

	return map[string]interface{}{
		"requests":       copyCounts(m.requestCount),
		"latencies":      latenciesCopy,
		"errors":         copyCounts(m.errorCount),
		"retries":        copyCounts(m.retryCount),
		"session_events": eventsCopy,
	}
}

// Retries returns the re-attempt count for one endpoint
func (m *MetricsCollector) Retries(method, path string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryCount[method+" "+path]
}

// SessionEvents returns how many events of type were observed
func (m *MetricsCollector) SessionEvents(eventType SessionEventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionEvents[eventType]
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// CompositeObserver allows multiple observers to be combined into one.
// All observer methods are called on each child observer in order.
// If an observer panics, it's caught to prevent affecting other observers.
//
// Example:
//
//	composite := sdk.NewCompositeObserver(
//	    sdk.NewMetricsCollector(),
//	    telemetry.NewObserver(metrics, logger),
//	)
//
//	config := sdk.DefaultConfig().WithObserver(composite)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

func (c *CompositeObserver) each(fn func(Observer)) {
	for _, obs := range c.observers {
		func() {
			defer func() {
				// Observer panicked, ignore
				_ = recover()
			}()
			fn(obs)
		}()
	}
}

// OnRequestStart notifies all observers of request start
func (c *CompositeObserver) OnRequestStart(method, path string) {
	c.each(func(obs Observer) { obs.OnRequestStart(method, path) })
}

// OnRequestEnd notifies all observers of request completion
func (c *CompositeObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	c.each(func(obs Observer) { obs.OnRequestEnd(method, path, duration, err) })
}

// OnRetryAttempt notifies all observers
func (c *CompositeObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	c.each(func(obs Observer) { obs.OnRetryAttempt(method, path, attempt, delay, err) })
}

// OnSessionEvent notifies all observers
func (c *CompositeObserver) OnSessionEvent(event SessionEvent) {
	c.each(func(obs Observer) { obs.OnSessionEvent(event) })
}
