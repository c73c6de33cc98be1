package sdk

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaseURL != "" {
		t.Errorf("BaseURL = %v, want empty", config.BaseURL)
	}

	if config.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want %v", config.Timeout, 15*time.Second)
	}

	if config.RetryConfig.MaxRetries != 0 {
		t.Errorf("MaxRetries = %v, want %v", config.RetryConfig.MaxRetries, 0)
	}

	if config.RetryConfig.Delay != time.Second {
		t.Errorf("Delay = %v, want %v", config.RetryConfig.Delay, time.Second)
	}

	if config.Register != (CallPolicy{Timeout: 30 * time.Second, MaxRetries: 2, RetryDelay: 2 * time.Second}) {
		t.Errorf("Register = %+v", config.Register)
	}

	if config.Probe != (CallPolicy{Timeout: 15 * time.Second, MaxRetries: 2, RetryDelay: time.Second}) {
		t.Errorf("Probe = %+v", config.Probe)
	}

	if config.TransportConfig.MaxIdleConns != 100 {
		t.Errorf("MaxIdleConns = %v, want %v", config.TransportConfig.MaxIdleConns, 100)
	}

	if config.TransportConfig.MaxConnsPerHost != 10 {
		t.Errorf("MaxConnsPerHost = %v, want %v", config.TransportConfig.MaxConnsPerHost, 10)
	}

	if config.LoginPath != DefaultLoginPath || config.ProbePath != DefaultProbePath {
		t.Errorf("paths = %q %q", config.LoginPath, config.ProbePath)
	}

	if config.Headers == nil {
		t.Error("Headers should not be nil")
	}
}

func TestConfig_WithHeader(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		value      string
		setupFunc  func() *Config
		wantLen    int
		wantHeader string
	}{
		{
			name:       "add to empty headers",
			key:        "X-Client",
			value:      "terminal",
			setupFunc:  func() *Config { return &Config{} },
			wantLen:    1,
			wantHeader: "terminal",
		},
		{
			name:       "add to existing headers",
			key:        "X-Tenant",
			value:      "north",
			setupFunc:  func() *Config { return DefaultConfig().WithHeader("X-Client", "terminal") },
			wantLen:    2,
			wantHeader: "north",
		},
		{
			name:       "overwrite existing header",
			key:        "X-Client",
			value:      "kiosk",
			setupFunc:  func() *Config { return DefaultConfig().WithHeader("X-Client", "terminal") },
			wantLen:    1,
			wantHeader: "kiosk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.setupFunc().WithHeader(tt.key, tt.value)

			if len(config.Headers) != tt.wantLen {
				t.Errorf("Headers length = %v, want %v", len(config.Headers), tt.wantLen)
			}

			if got := config.Headers[tt.key]; got != tt.wantHeader {
				t.Errorf("Header[%s] = %v, want %v", tt.key, got, tt.wantHeader)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid",
			config:  DefaultConfig().WithBaseURL("http://localhost:8080/api"),
			wantErr: false,
		},
		{
			name:    "missing base URL",
			config:  DefaultConfig(),
			wantErr: true,
		},
		{
			name:    "relative base URL",
			config:  DefaultConfig().WithBaseURL("/api"),
			wantErr: true,
		},
		{
			name:    "no host",
			config:  DefaultConfig().WithBaseURL("http://"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateFillsDefaults(t *testing.T) {
	config := &Config{BaseURL: "http://localhost:8080"}
	config.RetryConfig.MaxRetries = -3
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if config.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", config.Timeout)
	}
	if config.RetryConfig.MaxRetries != 0 {
		t.Errorf("MaxRetries = %v, want 0", config.RetryConfig.MaxRetries)
	}
	if config.RetryConfig.Delay != time.Second {
		t.Errorf("Delay = %v", config.RetryConfig.Delay)
	}
	if config.LoginPath != DefaultLoginPath {
		t.Errorf("LoginPath = %v", config.LoginPath)
	}
	if config.RetryStrategy == nil || config.Observer == nil || config.Logger == nil ||
		config.Tracer == nil || config.Navigator == nil || config.SessionBackend == nil {
		t.Errorf("collaborators not defaulted: %+v", config)
	}
}

func TestConfig_Policy(t *testing.T) {
	config := DefaultConfig().WithBaseURL("http://localhost").WithTimeout(5 * time.Second).WithRetries(1).WithRetryDelay(300 * time.Millisecond)

	got := config.policy(nil)
	want := CallPolicy{Timeout: 5 * time.Second, MaxRetries: 1, RetryDelay: 300 * time.Millisecond}
	if got != want {
		t.Errorf("policy(nil) = %+v, want %+v", got, want)
	}

	got = config.policy(&CallPolicy{MaxRetries: 0})
	want = CallPolicy{Timeout: 5 * time.Second, MaxRetries: 0, RetryDelay: 300 * time.Millisecond}
	if got != want {
		t.Errorf("policy(no retries) = %+v, want %+v", got, want)
	}

	got = config.policy(&config.Register)
	want = CallPolicy{Timeout: 30 * time.Second, MaxRetries: 2, RetryDelay: 2 * time.Second}
	if got != want {
		t.Errorf("policy(register) = %+v, want %+v", got, want)
	}
}

func TestConfig_Chaining(t *testing.T) {
	navigator := NewHistoryNavigator("/home")
	store := NewMemoryStore()
	metrics := NewMetricsCollector()

	config := DefaultConfig().
		WithBaseURL("https://shop.example.com/api").
		WithTimeout(3*time.Second).
		WithRetries(2).
		WithRetryDelay(100*time.Millisecond).
		WithLoginPath("/signin").
		WithHeader("X-Client", "terminal").
		WithNavigator(navigator).
		WithSessionBackend(store).
		WithObserver(metrics).
		WithRetryStrategy(&ExponentialBackoff{Multiplier: 2})

	if config.BaseURL != "https://shop.example.com/api" {
		t.Errorf("BaseURL = %v", config.BaseURL)
	}
	if config.Timeout != 3*time.Second || config.RetryConfig.MaxRetries != 2 || config.RetryConfig.Delay != 100*time.Millisecond {
		t.Errorf("retry settings = %v %+v", config.Timeout, config.RetryConfig)
	}
	if config.LoginPath != "/signin" {
		t.Errorf("LoginPath = %v", config.LoginPath)
	}
	if config.Navigator != navigator || config.SessionBackend != store || config.Observer != metrics {
		t.Error("collaborators not set")
	}
	if _, ok := config.RetryStrategy.(*ExponentialBackoff); !ok {
		t.Errorf("RetryStrategy = %T", config.RetryStrategy)
	}
}
