package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Endpoint paths, relative to the base URL
const (
	PathLogin         = "/users/login"
	PathRegister      = "/users/register"
	PathProductSearch = "/products/search"
	PathProductPage   = "/products/page"
	PathProducts      = "/products"
	PathProductBatch  = "/products/batch"
	PathProductExport = "/products/export"
	PathProductImport = "/products/import"
)

// Client is the catalogue client. Every network call goes through one
// request pipeline that attaches the stored token, retries transient
// failures and clears the session when the backend rejects it.
//
// All methods are safe for concurrent use.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().WithBaseURL("http://localhost:8080/api"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Login(ctx, sdk.Credentials{Username: "alice", Password: "secret"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	page, err := client.ListProducts(ctx, sdk.ProductQuery{Page: 0, PageSize: 20})
//	if errors.Is(err, sdk.ErrSessionExpired) {
//	    // Log in again
//	}
type Client interface {
	// Login exchanges credentials for a token and stores the session.
	Login(ctx context.Context, creds Credentials) (AuthResult, error)

	// Register creates an account. Transient failures are retried with the
	// register call policy. If the backend answers with a token the session
	// is stored as for Login.
	Register(ctx context.Context, creds Credentials) (json.RawMessage, error)

	// Logout clears the stored session without contacting the backend.
	Logout(ctx context.Context) error

	// CurrentUser decodes the stored profile into dest.
	// Returns ErrNoProfile when no profile is stored.
	CurrentUser(ctx context.Context, dest interface{}) error

	// Ping checks that the backend answers at all. Any HTTP status counts
	// as reachable; only transport failures are errors.
	Ping(ctx context.Context) error

	// SearchProducts queries the public search endpoint.
	SearchProducts(ctx context.Context, query ProductQuery) (ListResult[Product], error)

	// ListProducts returns one zero-based page of products.
	ListProducts(ctx context.Context, query ProductQuery) (ListResult[Product], error)

	// CreateProduct stores a new product and returns the backend's response.
	CreateProduct(ctx context.Context, product Product) (json.RawMessage, error)

	// DeleteProduct removes one product.
	DeleteProduct(ctx context.Context, id ProductID) error

	// BatchDeleteProducts removes several products in one call.
	BatchDeleteProducts(ctx context.Context, ids []ProductID) error

	// ExportProducts downloads the catalogue export file.
	ExportProducts(ctx context.Context) (*ExportFile, error)

	// ImportProducts uploads a file as multipart field "file".
	ImportProducts(ctx context.Context, filename string, r io.Reader) (json.RawMessage, error)

	// Do sends an arbitrary request through the pipeline.
	Do(ctx context.Context, req *Request) (*Response, error)

	// Session returns the session store backing the client.
	Session() *SessionStore

	// Close releases idle connections. Close is safe to call multiple times.
	Close() error
}

// client implements Client
type client struct {
	config    *Config
	session   *SessionStore
	pipeline  *Pipeline
	transport Transport

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client from config and loads the persisted session.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8080/api").
//	    WithSessionBackend(fileStore).
//	    WithObserver(observer)
//	client, err := sdk.NewClient(config)
func NewClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport := config.Transport
	if transport == nil {
		httpTransport, err := newHTTPTransport(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		transport = httpTransport
	}

	session := NewSessionStore(config.SessionBackend)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := session.Init(ctx); err != nil {
		return nil, err
	}

	return &client{
		config:    config,
		session:   session,
		pipeline:  NewPipeline(config, session, transport),
		transport: transport,
	}, nil
}

// newCall builds a request carrying the client-wide call policy
func (c *client) newCall(method, path string) *Request {
	req := NewRequest(method, path)
	p := c.config.policy(nil)
	req.Timeout = p.Timeout
	req.RetryBudget = p.MaxRetries
	req.RetryDelay = p.RetryDelay
	return req
}

func (c *client) withPolicy(req *Request, override CallPolicy) *Request {
	p := c.config.policy(&override)
	req.Timeout = p.Timeout
	req.RetryBudget = p.MaxRetries
	req.RetryDelay = p.RetryDelay
	return req
}

// Login exchanges credentials for a token
func (c *client) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	if err := c.checkClosed(); err != nil {
		return AuthResult{}, err
	}

	req := c.newCall(http.MethodPost, PathLogin)
	req.Body = creds
	body, err := c.pipeline.Send(ctx, req)
	if err != nil {
		return AuthResult{}, err
	}

	result, err := NormalizeAuth(body)
	if err != nil {
		return AuthResult{}, err
	}
	if err := c.session.Set(ctx, result.Token, result.Profile); err != nil {
		return AuthResult{}, err
	}
	c.config.Observer.OnSessionEvent(SessionEvent{Type: SessionLogin, Path: PathLogin, At: time.Now()})
	return result, nil
}

// Register creates an account
func (c *client) Register(ctx context.Context, creds Credentials) (json.RawMessage, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	req := c.withPolicy(c.newCall(http.MethodPost, PathRegister), c.config.Register)
	req.Body = creds
	body, err := c.pipeline.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if result, err := NormalizeAuth(body); err == nil {
		if err := c.session.Set(ctx, result.Token, result.Profile); err != nil {
			return nil, err
		}
		c.config.Observer.OnSessionEvent(SessionEvent{Type: SessionLogin, Path: PathRegister, At: time.Now()})
	}
	return json.RawMessage(body), nil
}

// Logout clears the stored session
func (c *client) Logout(ctx context.Context) error {
	if err := c.session.Clear(ctx); err != nil {
		return err
	}
	c.config.Observer.OnSessionEvent(SessionEvent{Type: SessionLogout, At: time.Now()})
	return nil
}

// CurrentUser decodes the stored profile
func (c *client) CurrentUser(ctx context.Context, dest interface{}) error {
	session, err := c.session.Get(ctx)
	if err != nil {
		return err
	}
	if len(session.Profile) == 0 {
		return ErrNoProfile
	}
	if dest == nil {
		return fmt.Errorf("destination cannot be nil")
	}
	if err := json.Unmarshal(session.Profile, dest); err != nil {
		return fmt.Errorf("failed to decode stored profile: %w", err)
	}
	return nil
}

// Ping checks connectivity to the backend
func (c *client) Ping(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	req := c.withPolicy(c.newCall(http.MethodGet, c.config.ProbePath), c.config.Probe)
	req.Query = url.Values{"page": {"1"}, "pageSize": {"1"}}
	req.Probe = true
	req.AcceptAnyStatus = true
	_, err := c.pipeline.Do(ctx, req)
	return err
}

// SearchProducts queries the search endpoint
func (c *client) SearchProducts(ctx context.Context, query ProductQuery) (ListResult[Product], error) {
	if err := c.checkClosed(); err != nil {
		return ListResult[Product]{}, err
	}

	if err := query.validate(); err != nil {
		return ListResult[Product]{}, err
	}

	req := c.newCall(http.MethodGet, PathProductSearch)
	req.Query = query.values()
	body, err := c.pipeline.Send(ctx, req)
	if err != nil {
		return ListResult[Product]{}, err
	}
	return DecodeList[Product](body)
}

// ListProducts returns one page of products
func (c *client) ListProducts(ctx context.Context, query ProductQuery) (ListResult[Product], error) {
	if err := c.checkClosed(); err != nil {
		return ListResult[Product]{}, err
	}

	if err := query.validate(); err != nil {
		return ListResult[Product]{}, err
	}

	req := c.newCall(http.MethodGet, PathProductPage)
	req.Query = query.values()
	req.RequiresAuth = true
	body, err := c.pipeline.Send(ctx, req)
	if err != nil {
		return ListResult[Product]{}, err
	}
	return DecodeList[Product](body)
}

// CreateProduct stores a new product
func (c *client) CreateProduct(ctx context.Context, product Product) (json.RawMessage, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	req := c.newCall(http.MethodPost, PathProducts)
	req.Body = product
	req.RequiresAuth = true
	body, err := c.pipeline.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// DeleteProduct removes one product
func (c *client) DeleteProduct(ctx context.Context, id ProductID) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if id == "" {
		return NewError(FailureClientConfig, "product id cannot be empty")
	}

	req := c.newCall(http.MethodDelete, PathProducts+"/"+url.PathEscape(id.String()))
	req.RequiresAuth = true
	_, err := c.pipeline.Do(ctx, req)
	return err
}

// BatchDeleteProducts removes several products
func (c *client) BatchDeleteProducts(ctx context.Context, ids []ProductID) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return NewError(FailureClientConfig, "no product ids given")
	}

	req := c.newCall(http.MethodDelete, PathProductBatch)
	req.Body = batchDeleteRequest{IDs: ids}
	req.RequiresAuth = true
	_, err := c.pipeline.Do(ctx, req)
	return err
}

// ExportProducts downloads the export file
func (c *client) ExportProducts(ctx context.Context) (*ExportFile, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	req := c.newCall(http.MethodGet, PathProductExport)
	req.Binary = true
	req.RequiresAuth = true
	resp, err := c.pipeline.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	filename := resp.Filename()
	if filename == "" {
		filename = "products-export.xlsx"
	}
	return &ExportFile{
		Filename:    filename,
		ContentType: resp.ContentType(),
		Data:        resp.Body,
	}, nil
}

// ImportProducts uploads a file
func (c *client) ImportProducts(ctx context.Context, filename string, r io.Reader) (json.RawMessage, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	if r == nil {
		return nil, NewError(FailureClientConfig, "import reader is nil")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewError(FailureClientConfig, "failed to read import file").WithCause(err)
	}

	req := c.newCall(http.MethodPost, PathProductImport)
	req.Multipart = &MultipartFile{Field: "file", Filename: filename, Data: data}
	req.RequiresAuth = true
	body, err := c.pipeline.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Do sends an arbitrary request through the pipeline
func (c *client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if req.RetryDelay <= 0 {
		req = req.clone()
		req.RetryDelay = c.config.RetryConfig.Delay
	}
	return c.pipeline.Do(ctx, req)
}

// Session returns the session store
func (c *client) Session() *SessionStore {
	return c.session
}

// Close closes the client and releases resources
func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if t, ok := c.transport.(*httpTransport); ok {
		t.close()
	}
	return nil
}

// checkClosed checks if the client is closed
func (c *client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	return nil
}

func (q ProductQuery) validate() error {
	if q.Page < 0 {
		return NewError(FailureClientConfig, fmt.Sprintf("page must not be negative, got %d", q.Page))
	}
	return nil
}

// values translates the zero-based page into the backend's one-based page.
func (q ProductQuery) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page+1))
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	return v
}
