package testdata

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MockServer provides a configurable catalogue backend for tests
type MockServer struct {
	*httptest.Server
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	requestCount atomic.Int32
	requests     []RecordedRequest
}

// HandlerFunc is a custom handler function type. A nil response writes no body.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) (int, interface{})

// RecordedRequest stores information about a received request
type RecordedRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
	Time    time.Time
}

// NewMockServer creates a new mock server with the default catalogue handlers
func NewMockServer() *MockServer {
	ms := &MockServer{
		handlers: make(map[string]HandlerFunc),
		requests: make([]RecordedRequest, 0),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ms.handleRequest)

	ms.Server = httptest.NewServer(mux)
	ms.setupDefaultHandlers()

	return ms
}

// setupDefaultHandlers sets up the happy-path catalogue endpoints
func (ms *MockServer) setupDefaultHandlers() {
	ms.RegisterHandler("POST /users/login", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return http.StatusOK, LoginResponse(TestToken)
	})

	ms.RegisterHandler("GET /products/search", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return http.StatusOK, SampleProducts()
	})

	ms.RegisterHandler("GET /products/page", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return http.StatusOK, PageResponse(SampleProducts(), 42)
	})

	ms.RegisterHandler("POST /products", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = 100
		return http.StatusCreated, body
	})

	ms.RegisterHandler("DELETE /products/", func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return http.StatusNoContent, nil
	})
}

// RegisterHandler registers a custom handler for a "METHOD /path" pattern.
// Patterns ending in "/" match any path with that prefix.
func (ms *MockServer) RegisterHandler(pattern string, handler HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[pattern] = handler
}

// handleRequest routes requests to appropriate handlers
func (ms *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	// Record the request
	body := make([]byte, 0)
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	ms.mu.Lock()
	ms.requests = append(ms.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.EscapedPath(),
		Query:   r.URL.Query(),
		Headers: r.Header.Clone(),
		Body:    body,
		Time:    time.Now(),
	})
	ms.mu.Unlock()

	ms.requestCount.Add(1)

	// Find matching handler, longest prefix pattern first
	pattern := r.Method + " " + r.URL.Path
	ms.mu.RLock()
	handler, exact := ms.handlers[pattern]
	if !exact {
		longest := 0
		for p, h := range ms.handlers {
			if strings.HasSuffix(p, "/") && strings.HasPrefix(pattern, p) && len(p) > longest {
				handler, longest = h, len(p)
			}
		}
	}
	ms.mu.RUnlock()

	if handler == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    404,
			"message": "Not found",
		})
		return
	}

	status, response := handler(w, r)

	if raw, ok := response.([]byte); ok {
		w.WriteHeader(status)
		_, _ = w.Write(raw)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if response != nil {
		_ = json.NewEncoder(w).Encode(response)
	}
}

// GetRequestCount returns the total number of requests received
func (ms *MockServer) GetRequestCount() int {
	return int(ms.requestCount.Load())
}

// GetRequests returns all recorded requests
func (ms *MockServer) GetRequests() []RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]RecordedRequest, len(ms.requests))
	copy(result, ms.requests)
	return result
}

// LastRequest returns the most recent request, or the zero value
func (ms *MockServer) LastRequest() RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if len(ms.requests) == 0 {
		return RecordedRequest{}
	}
	return ms.requests[len(ms.requests)-1]
}

// Reset clears all recorded requests
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requestCount.Store(0)
	ms.requests = ms.requests[:0]
}

// WithErrorResponse sets up a handler that returns an error payload
func (ms *MockServer) WithErrorResponse(pattern string, statusCode int, message string) {
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		return statusCode, map[string]interface{}{
			"code":    statusCode,
			"message": message,
		}
	})
}

// WithDelayedResponse sets up a handler that delays before responding
func (ms *MockServer) WithDelayedResponse(pattern string, delay time.Duration, handler HandlerFunc) {
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
		return handler(w, r)
	})
}

// WithHangingResponse sets up a handler that answers the first hangCount
// requests only after delay, long enough to trip a client timeout, and
// answers later requests with handler immediately.
func (ms *MockServer) WithHangingResponse(pattern string, hangCount int, delay time.Duration, handler HandlerFunc) {
	attempts := atomic.Int32{}
	ms.RegisterHandler(pattern, func(w http.ResponseWriter, r *http.Request) (int, interface{}) {
		if int(attempts.Add(1)) <= hangCount {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
			}
		}
		return handler(w, r)
	})
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	if ms.Server != nil {
		ms.Server.Close()
	}
}
