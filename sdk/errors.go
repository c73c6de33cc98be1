package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Sentinel errors returned by the SDK. Every failure produced by the client
// matches exactly one FailureKind sentinel with errors.Is(); some failures
// additionally match a more specific sentinel.
//
// Example:
//
//	_, err := client.ListProducts(ctx, sdk.ProductQuery{Page: 0, PageSize: 20})
//	switch {
//	case errors.Is(err, sdk.ErrSessionExpired):
//	    // The session was cleared and the navigator was sent to the login page
//	case errors.Is(err, sdk.ErrAuthRequired):
//	    // No token was stored, nothing was sent
//	case errors.Is(err, sdk.ErrTransient):
//	    // The backend could not be reached, retry budget exhausted
//	case errors.Is(err, sdk.ErrCanceled):
//	    // The caller canceled the context
//	}
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransient matches failures where no HTTP response was received
	ErrTransient = errors.New("transient network failure")

	// ErrUnauthorized matches every authentication failure
	ErrUnauthorized = errors.New("authentication failed")

	// ErrAuthRequired is returned when a call needing a token is made without one
	ErrAuthRequired = errors.New("authentication required")

	// ErrSessionExpired is returned when the backend rejected the stored token
	ErrSessionExpired = errors.New("session expired")

	// ErrServer matches HTTP error responses that are not authentication failures
	ErrServer = errors.New("server error")

	// ErrClientConfig matches failures building or encoding a request
	ErrClientConfig = errors.New("invalid request")

	// ErrConstruction is returned when a successful response lacks required fields
	ErrConstruction = errors.New("invalid result")

	// ErrCanceled is returned when the caller's context ends the call
	ErrCanceled = errors.New("request canceled")

	// ErrInvalidResponse is returned when the server response cannot be parsed
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrNoProfile is returned by CurrentUser when no profile is stored
	ErrNoProfile = errors.New("no user profile stored")
)

// FailureKind categorizes a failed call. It is derived once per failed attempt
// and drives retry and session recovery decisions.
type FailureKind int

const (
	// FailureUnknown is never produced by Classify
	FailureUnknown FailureKind = iota
	// FailureTransient is a connection-level failure or a per-attempt timeout
	FailureTransient
	// FailureAuth is a 401, a 403 or a body carrying code 401
	FailureAuth
	// FailureServer is any other HTTP error status
	FailureServer
	// FailureClientConfig is a request that could not be built
	FailureClientConfig
	// FailureConstruction is a response that could not be turned into a result
	FailureConstruction
	// FailureCanceled is a call stopped by its caller
	FailureCanceled
)

// String returns the string representation of the failure kind
func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureAuth:
		return "auth"
	case FailureServer:
		return "server"
	case FailureClientConfig:
		return "client_config"
	case FailureConstruction:
		return "construction"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureTransient:
		return ErrTransient
	case FailureAuth:
		return ErrUnauthorized
	case FailureServer:
		return ErrServer
	case FailureClientConfig:
		return ErrClientConfig
	case FailureConstruction:
		return ErrConstruction
	case FailureCanceled:
		return ErrCanceled
	default:
		return nil
	}
}

// Error describes a failed call. It carries the failure kind, the HTTP status
// and backend payload when a response was received, and where the call went.
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    fmt.Printf("kind=%s status=%d message=%s\n", sdkErr.Kind, sdkErr.StatusCode, sdkErr.Message)
//	    fmt.Printf("attempts=%d %s %s\n", sdkErr.Attempts, sdkErr.Method, sdkErr.URL)
//	}
type Error struct {
	// Kind drives recovery decisions
	Kind FailureKind `json:"kind"`
	// StatusCode is the HTTP status, zero when no response was received
	StatusCode int `json:"status_code,omitempty"`
	// Code is the backend error code, if the payload carried one
	Code string `json:"code,omitempty"`
	// Message is a human-readable description
	Message string `json:"message"`
	// Payload is the raw backend error body
	Payload json.RawMessage `json:"payload,omitempty"`
	// Method and URL of the failed request
	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`
	// Attempts is the number of transport attempts made
	Attempts int `json:"attempts,omitempty"`
	// RequestID is the X-Request-ID the call was sent with
	RequestID string `json:"request_id,omitempty"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Method != "" {
		msg += fmt.Sprintf(" [%s %s]", e.Method, e.URL)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches the sentinel of the failure kind
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return e.Kind.sentinel() == target
}

// NewError creates an Error of the given kind
func NewError(kind FailureKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithCause sets the underlying cause
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func (e *Error) withRequest(req *Request) *Error {
	if req != nil {
		e.Method = req.Method
		if e.URL == "" {
			e.URL = req.Path
		}
		if e.RequestID == "" {
			e.RequestID = req.Headers.Get(HeaderRequestID)
		}
	}
	return e
}

// KindOf returns the failure kind of err, or FailureUnknown
func KindOf(err error) FailureKind {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.Kind
	}
	return FailureUnknown
}

// IsRetryable reports whether the Retry Policy may re-dispatch after err.
// Only transient failures qualify; a received HTTP status never does.
func IsRetryable(err error) bool {
	return KindOf(err) == FailureTransient
}

// Classify derives the failure kind of a settled attempt. A non-nil response
// takes precedence over transport errors; without one, a canceled parent
// context is FailureCanceled and anything else is FailureTransient.
func Classify(parent context.Context, statusCode int, body []byte, transportErr error) FailureKind {
	if statusCode > 0 {
		if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
			return FailureAuth
		}
		if code, ok := payloadCode(body); ok && code == "401" {
			return FailureAuth
		}
		return FailureServer
	}
	if transportErr == nil {
		return FailureUnknown
	}
	if parent != nil && parent.Err() != nil {
		return FailureCanceled
	}
	return FailureTransient
}

// canceledError builds the error returned for a call stopped by its caller.
// It matches both ErrCanceled and the context's own error.
func canceledError(ctx context.Context, req *Request, attempts int) *Error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	e := NewError(FailureCanceled, "call canceled by caller").WithCause(cause).withRequest(req)
	e.Attempts = attempts
	return e
}

// responseError builds the error for an HTTP error status, attaching the
// backend payload and any code/message fields it carries.
func responseError(kind FailureKind, statusCode int, body []byte) *Error {
	e := &Error{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return e
	}
	if json.Valid(trimmed) {
		e.Payload = json.RawMessage(trimmed)
	}

	var envelope struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			e.Message = envelope.Message
		case envelope.Msg != "":
			e.Message = envelope.Msg
		case envelope.Error != "":
			e.Message = envelope.Error
		}
	}
	if code, ok := payloadCode(trimmed); ok {
		e.Code = code
	}
	return e
}

// payloadCode extracts a "code" field that may be a number or a string.
func payloadCode(body []byte) (string, bool) {
	var envelope struct {
		Code json.RawMessage `json:"code"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil || len(envelope.Code) == 0 {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(envelope.Code, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return n.String(), true
	}
	var s string
	if err := json.Unmarshal(envelope.Code, &s); err == nil && s != "" {
		return s, true
	}
	return "", false
}
