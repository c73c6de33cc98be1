package sdk

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Header names set by the pipeline
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"
)

// Request describes one logical call. It is built by a client method,
// decorated by the request stages and then treated as immutable: the retry
// machine keeps its counters in its own state and re-sends the same Request
// on every attempt.
type Request struct {
	Method string
	// Path is relative to the configured base URL
	Path  string
	Query url.Values
	// Body is encoded as JSON when Multipart is nil
	Body      any
	Multipart *MultipartFile
	Headers   http.Header

	// Timeout bounds each attempt
	Timeout time.Duration
	// RetryBudget is the number of re-attempts allowed on transient failure
	RetryBudget int
	// RetryDelay is the minimum wait before a re-attempt
	RetryDelay time.Duration

	// RequiresAuth rejects the call before dispatch when no token is stored
	RequiresAuth bool
	// Probe marks a connectivity check, exempt from authentication handling
	Probe bool
	// Binary asks for the raw response body instead of JSON
	Binary bool
	// AcceptAnyStatus treats every received HTTP status as success
	AcceptAnyStatus bool
}

// MultipartFile is a file uploaded as multipart/form-data
type MultipartFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// NewRequest creates a request for method and path with empty headers.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(http.Header),
	}
}

// clone copies the request so stages never mutate the caller's value.
func (r *Request) clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header)
	}
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// Response is a successful transport result.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the media type of the body without parameters
func (r *Response) ContentType() string {
	ct := r.Header.Get(HeaderContentType)
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mediaType
}

// Filename returns the file name announced by Content-Disposition, or "".
func (r *Response) Filename() string {
	cd := r.Header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}
