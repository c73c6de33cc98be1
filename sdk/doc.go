// Package sdk provides a resilient Go client for a product-catalogue backend.
// Every network call passes through a single request pipeline that owns the
// authentication token lifecycle, retries transient failures, normalizes
// response shapes and recovers from expired sessions.
//
// # Features
//
// The SDK provides:
//   - A persisted session (token and user profile) behind a pluggable KeyValueStore
//   - Ordered request and response stages, extensible through Config
//   - Bounded retries on transient network failures only, with a per-attempt timeout
//   - Exactly-once session expiry handling, even with concurrent failing calls
//   - One canonical shape for list and login responses
//   - Typed errors usable with errors.Is and errors.As
//   - Observer hooks, logrus logging and OpenTelemetry spans
//
// # Basic Usage
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8080/api"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	auth, err := client.Login(ctx, sdk.Credentials{Username: "alice", Password: "secret"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("logged in, token %s...", auth.Token[:8])
//
//	page, err := client.ListProducts(ctx, sdk.ProductQuery{Page: 0, PageSize: 20})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("%d of %d products", len(page.Items), page.Total)
//
// # Pipeline
//
// A call runs through these steps:
//
//  1. Request stages: request id, default headers, cache busting for probes,
//     bearer token injection, and the pre-flight authentication check.
//  2. The retry machine, which calls the transport once per attempt.
//  3. Response stages: session expiry handling, then any custom stages.
//
// Calls that require authentication fail with ErrAuthRequired before
// anything is sent when no token is stored, and the navigator is sent to
// the login page. When the backend rejects a stored token, the session is
// cleared, the navigator is sent to the login page once, and the call fails
// with ErrSessionExpired.
//
// # Error Handling
//
// Every failure is an *Error carrying a FailureKind:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    switch sdkErr.Kind {
//	    case sdk.FailureTransient:
//	        // No response; retry budget exhausted
//	    case sdk.FailureAuth:
//	        // 401, 403 or a body with code 401
//	    case sdk.FailureServer:
//	        // Any other HTTP error, payload in sdkErr.Payload
//	    case sdk.FailureCanceled:
//	        // The caller's context ended the call
//	    }
//	}
//
// # Retries
//
// Only connection-level failures and per-attempt timeouts are retried.
// A received HTTP status is never retried. The budget and delay come from
// Config.RetryConfig, with per-call overrides for Register and Ping:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL(url).
//	    WithRetries(2).
//	    WithRetryDelay(500 * time.Millisecond).
//	    WithRetryStrategy(&sdk.ExponentialBackoff{Multiplier: 2, MaxInterval: 5 * time.Second})
//
// # Session Persistence
//
// The default MemoryStore forgets the session when the process exits.
// Durable stores live in internal/cache (file, Redis and PostgreSQL):
//
//	store, err := cache.NewFileStore(cache.DefaultSessionPath())
//	config := sdk.DefaultConfig().WithBaseURL(url).WithSessionBackend(store)
package sdk
