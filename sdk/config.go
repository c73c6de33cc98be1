package sdk

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultLoginPath is where the navigator is sent when authentication is lost
	DefaultLoginPath = "/login"
	// DefaultProbePath is the connectivity probe endpoint
	DefaultProbePath = "/products/search"
	// DefaultUserAgent is sent when no User-Agent header is configured
	DefaultUserAgent = "shelf-sdk/1.0"

	tracerName = "github.com/birbparty/shelf/sdk"
)

// Config holds the configuration for the shelf client.
// Only BaseURL is required; everything else has a default.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8080/api").
//	    WithTimeout(10 * time.Second).
//	    WithRetries(2).
//	    WithSessionBackend(store)
//
//	client, err := sdk.NewClient(config)
type Config struct {
	// BaseURL is the backend root, including any /api prefix.
	BaseURL string

	// Timeout bounds a single transport attempt, not the whole call.
	// Default: 15s
	Timeout time.Duration

	// RetryConfig is the default retry budget for calls that do not set their own.
	RetryConfig RetryConfig

	// Register overrides the call policy of Register.
	// Default: 30s timeout, 2 retries 2s apart (three attempts in total)
	Register CallPolicy

	// Probe overrides the call policy of Ping.
	// Default: 15s timeout, 2 retries 1s apart
	Probe CallPolicy

	// TransportConfig holds HTTP connection pooling settings.
	TransportConfig TransportConfig

	// Headers are sent with every request.
	Headers map[string]string

	// LoginPath is the navigation target on authentication loss.
	// Default: "/login"
	LoginPath string

	// ProbePath is the endpoint whose authentication failures never expire
	// the session. Default: "/products/search"
	ProbePath string

	// RetryStrategy computes the delay between attempts.
	// Default: ConstantBackoff
	RetryStrategy RetryStrategy

	// Observer receives pipeline events. Default: NoopObserver
	Observer Observer

	// Logger receives debug and warning logs. Default: a logger writing nowhere
	Logger logrus.FieldLogger

	// Tracer starts one span per call. Default: the global OpenTelemetry tracer
	Tracer trace.Tracer

	// Navigator is the host's navigation capability. Default: HistoryNavigator at "/"
	Navigator Navigator

	// SessionBackend persists the session. Default: MemoryStore
	SessionBackend KeyValueStore

	// HTTPClient is used by the default transport. Default: built from TransportConfig
	HTTPClient *http.Client

	// Transport performs single attempts. Default: HTTP transport over HTTPClient
	Transport Transport

	// RequestStages run after the built-in request stages, in order.
	RequestStages []RequestStage

	// ResponseStages run after the built-in response stages, in order.
	ResponseStages []ResponseStage
}

// RetryConfig holds the default retry budget.
//
// Example:
//
//	config.RetryConfig = sdk.RetryConfig{
//	    MaxRetries: 2,
//	    Delay:      500 * time.Millisecond,
//	}
type RetryConfig struct {
	// MaxRetries is the number of re-attempts after the first one.
	// Default: 0
	MaxRetries int

	// Delay is the minimum wait before each re-attempt.
	// Default: 1s
	Delay time.Duration
}

// CallPolicy overrides timeout and retry settings for one kind of call.
// Zero fields fall back to the client-wide values.
type CallPolicy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// TransportConfig holds HTTP transport configuration for connection pooling.
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays open.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// DefaultConfig returns a Config with the defaults of the catalogue frontend:
//   - Timeout: 15 seconds per attempt
//   - No retries, 1 second delay when retries are enabled
//   - Register: 30 seconds, 3 attempts 2 seconds apart
//   - Probe: 15 seconds, 3 attempts 1 second apart
//
// BaseURL must still be set.
//
// Example:
//
//	config := sdk.DefaultConfig().WithBaseURL("http://localhost:8080")
//	client, err := sdk.NewClient(config)
func DefaultConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
		RetryConfig: RetryConfig{
			MaxRetries: 0,
			Delay:      time.Second,
		},
		Register: CallPolicy{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			RetryDelay: 2 * time.Second,
		},
		Probe: CallPolicy{
			Timeout:    15 * time.Second,
			MaxRetries: 2,
			RetryDelay: time.Second,
		},
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:   make(map[string]string),
		LoginPath: DefaultLoginPath,
		ProbePath: DefaultProbePath,
	}
}

// WithBaseURL sets the backend root URL.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetries sets the default number of re-attempts on transient failure.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetries(2).
//	    WithRetryDelay(500 * time.Millisecond)
func (c *Config) WithRetries(maxRetries int) *Config {
	c.RetryConfig.MaxRetries = maxRetries
	return c
}

// WithRetryDelay sets the default minimum delay between attempts.
func (c *Config) WithRetryDelay(delay time.Duration) *Config {
	c.RetryConfig.Delay = delay
	return c
}

// WithHeader adds a header sent with every request.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithHeader("X-Client", "warehouse-terminal")
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithLoginPath sets the navigation target used when authentication is lost.
func (c *Config) WithLoginPath(path string) *Config {
	c.LoginPath = path
	return c
}

// WithRetryStrategy sets the delay strategy between attempts.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetryStrategy(&sdk.ExponentialBackoff{Multiplier: 2, MaxInterval: 10 * time.Second})
func (c *Config) WithRetryStrategy(strategy RetryStrategy) *Config {
	c.RetryStrategy = strategy
	return c
}

// WithObserver sets the observer notified of pipeline events.
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithLogger sets the logger used by the pipeline.
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// WithTracer sets the tracer used for per-call spans.
func (c *Config) WithTracer(tracer trace.Tracer) *Config {
	c.Tracer = tracer
	return c
}

// WithNavigator sets the navigation capability.
func (c *Config) WithNavigator(navigator Navigator) *Config {
	c.Navigator = navigator
	return c
}

// WithSessionBackend sets where the session is persisted.
//
// Example:
//
//	store, err := cache.NewFileStore(cache.DefaultSessionPath())
//	config := sdk.DefaultConfig().WithSessionBackend(store)
func (c *Config) WithSessionBackend(store KeyValueStore) *Config {
	c.SessionBackend = store
	return c
}

// WithHTTPClient sets the HTTP client used by the default transport.
func (c *Config) WithHTTPClient(client *http.Client) *Config {
	c.HTTPClient = client
	return c
}

// WithTransport replaces the HTTP transport entirely.
func (c *Config) WithTransport(transport Transport) *Config {
	c.Transport = transport
	return c
}

// WithRequestStage appends a request stage after the built-in ones.
func (c *Config) WithRequestStage(stage RequestStage) *Config {
	c.RequestStages = append(c.RequestStages, stage)
	return c
}

// WithResponseStage appends a response stage after the built-in ones.
func (c *Config) WithResponseStage(stage ResponseStage) *Config {
	c.ResponseStages = append(c.ResponseStages, stage)
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewClient.
//
// Returns an error if the base URL is missing or not absolute.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RetryConfig.MaxRetries < 0 {
		c.RetryConfig.MaxRetries = 0
	}
	if c.RetryConfig.Delay <= 0 {
		c.RetryConfig.Delay = time.Second
	}
	if c.Register.MaxRetries < 0 {
		c.Register.MaxRetries = 0
	}
	if c.Probe.MaxRetries < 0 {
		c.Probe.MaxRetries = 0
	}
	if c.TransportConfig.MaxIdleConns <= 0 {
		c.TransportConfig.MaxIdleConns = 100
	}
	if c.TransportConfig.MaxConnsPerHost <= 0 {
		c.TransportConfig.MaxConnsPerHost = 10
	}
	if c.TransportConfig.IdleConnTimeout <= 0 {
		c.TransportConfig.IdleConnTimeout = 90 * time.Second
	}
	if c.LoginPath == "" {
		c.LoginPath = DefaultLoginPath
	}
	if c.ProbePath == "" {
		c.ProbePath = DefaultProbePath
	}
	if c.RetryStrategy == nil {
		c.RetryStrategy = ConstantBackoff{}
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	if c.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		c.Logger = logger
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
	if c.Navigator == nil {
		c.Navigator = NewHistoryNavigator("/")
	}
	if c.SessionBackend == nil {
		c.SessionBackend = NewMemoryStore()
	}
	return nil
}

// policy resolves a CallPolicy against the client-wide defaults.
func (c *Config) policy(p *CallPolicy) CallPolicy {
	resolved := CallPolicy{
		Timeout:    c.Timeout,
		MaxRetries: c.RetryConfig.MaxRetries,
		RetryDelay: c.RetryConfig.Delay,
	}
	if p == nil {
		return resolved
	}
	if p.Timeout > 0 {
		resolved.Timeout = p.Timeout
	}
	resolved.MaxRetries = p.MaxRetries
	if p.RetryDelay > 0 {
		resolved.RetryDelay = p.RetryDelay
	}
	return resolved
}
