package sdk

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RequestStage decorates or vetoes an outgoing request. Stages run in order
// before dispatch; the first error aborts the call and nothing is sent.
type RequestStage func(ctx context.Context, req *Request, session Session) error

// ResponseStage inspects a settled call. Exactly one of resp and err is
// non-nil on entry; a stage returns the pair the next stage (or the caller)
// receives.
type ResponseStage func(ctx context.Context, req *Request, resp *Response, err error) (*Response, error)

// Pipeline is the single chokepoint every call passes through:
// request stages, then the retry machine over the transport, then
// response stages.
type Pipeline struct {
	session        *SessionStore
	transport      Transport
	retry          *retryPolicy
	requestStages  []RequestStage
	responseStages []ResponseStage
	timeout        time.Duration
	observer       Observer
	logger         logrus.FieldLogger
	tracer         trace.Tracer
}

// NewPipeline assembles the built-in stages followed by any stages from
// config. config must have been validated.
func NewPipeline(config *Config, session *SessionStore, transport Transport) *Pipeline {
	p := &Pipeline{
		session:   session,
		transport: transport,
		retry:     newRetryPolicy(config.RetryStrategy, config.Observer, config.Logger),
		timeout:   config.Timeout,
		observer:  config.Observer,
		logger:    config.Logger,
		tracer:    config.Tracer,
	}

	p.requestStages = append([]RequestStage{
		requestID(),
		defaultHeaders(config.Headers),
		cacheBust(),
		injectAuth(),
		requireAuth(config.Navigator, config.LoginPath, config.Logger),
	}, config.RequestStages...)

	p.responseStages = append([]ResponseStage{
		expireSession(session, config.Navigator, config.LoginPath, config.ProbePath, config.Observer, config.Logger),
	}, config.ResponseStages...)

	return p
}

// Do runs req through the pipeline and returns the transport envelope.
func (p *Pipeline) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.Bool("shelf.requires_auth", req.RequiresAuth),
			attribute.Bool("shelf.probe", req.Probe),
		))
	defer span.End()

	p.observer.OnRequestStart(req.Method, req.Path)
	resp, err := p.do(ctx, req)
	p.observer.OnRequestEnd(req.Method, req.Path, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("shelf.failure_kind", KindOf(err).String()))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Send runs req through the pipeline and returns only the response body.
func (p *Pipeline) Send(ctx context.Context, req *Request) ([]byte, error) {
	resp, err := p.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (p *Pipeline) do(ctx context.Context, original *Request) (*Response, error) {
	if ctx.Err() != nil {
		return nil, canceledError(ctx, original, 0)
	}

	req := original.clone()
	if req.Timeout <= 0 {
		req.Timeout = p.timeout
	}

	session, err := p.session.Get(ctx)
	if err != nil {
		return nil, canceledError(ctx, req, 0)
	}
	ctx = ContextWithSession(ctx, session)

	for _, stage := range p.requestStages {
		if err := stage(ctx, req, session); err != nil {
			return nil, err
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Headers))

	resp, err := p.retry.Execute(ctx, req, func(ctx context.Context, attempt int) (*Response, error) {
		p.logger.WithFields(logrus.Fields{
			"method":     req.Method,
			"path":       req.Path,
			"attempt":    attempt,
			"request_id": req.Headers.Get(HeaderRequestID),
		}).Debug("dispatching request")
		return p.transport.RoundTrip(ctx, req)
	})

	for _, stage := range p.responseStages {
		resp, err = stage(ctx, req, resp, err)
	}
	return resp, err
}

type sessionContextKey struct{}

// ContextWithSession records the session snapshot a call was made with.
func ContextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the snapshot recorded by ContextWithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}
