package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// Transport performs a single attempt of a Request. It never retries; the
// retry machine above it decides whether to call it again.
//
// Implementations return a *Response for accepted statuses and an *Error
// otherwise. The default implementation speaks HTTP through net/http; tests
// and embedders can substitute their own with Config.WithTransport.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// RoundTrip calls f(ctx, req)
func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// httpTransport handles HTTP communication with the catalogue backend.
type httpTransport struct {
	// client is the underlying HTTP client
	client *http.Client
	// baseURL is the parsed base URL, including any path prefix
	baseURL *url.URL
}

// newHTTPTransport creates a native HTTP transport
func newHTTPTransport(config *Config) (*httpTransport, error) {
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL must have a scheme and host")
	}

	client := config.HTTPClient
	if client == nil {
		// No client-level timeout: every attempt carries its own deadline.
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        config.TransportConfig.MaxIdleConns,
				MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
				IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &httpTransport{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// RoundTrip performs one HTTP attempt under a fresh per-attempt timeout.
func (t *httpTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	fullURL := t.resolve(req)

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, NewError(FailureClientConfig, "failed to encode request body").
			WithCause(err).withRequest(req).atURL(fullURL)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, fullURL.String(), body)
	if err != nil {
		return nil, NewError(FailureClientConfig, "failed to create request").
			WithCause(err).withRequest(req).atURL(fullURL)
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set(HeaderContentType, contentType)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, req, fullURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, req, fullURL, err)
	}

	if req.AcceptAnyStatus || resp.StatusCode < http.StatusBadRequest {
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       respBody,
		}, nil
	}

	kind := Classify(ctx, resp.StatusCode, respBody, nil)
	apiErr := responseError(kind, resp.StatusCode, respBody).withRequest(req).atURL(fullURL)
	if reqID := resp.Header.Get(HeaderRequestID); reqID != "" {
		apiErr.RequestID = reqID
	}
	return nil, apiErr
}

// resolve joins the request path onto the base URL, keeping any prefix of
// the base path such as /api.
func (t *httpTransport) resolve(req *Request) *url.URL {
	u := t.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u
}

func (t *httpTransport) close() {
	t.client.CloseIdleConnections()
}

// transportError classifies a failure that produced no HTTP response.
func transportError(parent context.Context, req *Request, u *url.URL, err error) error {
	if Classify(parent, 0, nil, err) == FailureCanceled {
		return canceledError(parent, req, 0).atURL(u)
	}
	message := "no response received"
	if errors.Is(err, context.DeadlineExceeded) {
		message = fmt.Sprintf("no response within %s", req.Timeout)
	}
	return NewError(FailureTransient, message).WithCause(err).withRequest(req).atURL(u)
}

func (e *Error) atURL(u *url.URL) *Error {
	if u != nil {
		e.URL = u.Redacted()
	}
	return e
}

// encodeBody renders the request body. It is called once per attempt so
// every attempt sends a complete body.
func encodeBody(req *Request) (io.Reader, string, error) {
	if req.Multipart != nil {
		return encodeMultipart(req.Multipart)
	}
	if req.Body == nil {
		return nil, "", nil
	}
	switch b := req.Body.(type) {
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	case json.RawMessage:
		return bytes.NewReader(b), "application/json", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(file *MultipartFile) (io.Reader, string, error) {
	field := file.Field
	if field == "" {
		field = "file"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.Filename)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
