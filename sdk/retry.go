package sdk

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryStrategy computes the wait before a re-attempt. Whether a failure is
// retried at all is not the strategy's decision: only transient failures are,
// and only while the call's retry budget lasts.
//
// The SDK provides two strategies:
//   - ConstantBackoff: always waits the call's retry delay (default)
//   - ExponentialBackoff: grows the delay from the call's retry delay
//
// Custom strategies only need NextInterval:
//
//	type SquareStrategy struct{}
//
//	func (SquareStrategy) NextInterval(attempt int, minimum time.Duration) time.Duration {
//	    return minimum * time.Duration(attempt*attempt)
//	}
//
// The pipeline never waits less than the call's retry delay, whatever a
// strategy returns.
type RetryStrategy interface {
	// NextInterval returns the delay before re-attempt number attempt
	// (starting at 1). minimum is the call's configured retry delay.
	NextInterval(attempt int, minimum time.Duration) time.Duration
}

// ConstantBackoff waits exactly the call's retry delay before every re-attempt.
type ConstantBackoff struct{}

// NextInterval returns minimum
func (ConstantBackoff) NextInterval(attempt int, minimum time.Duration) time.Duration {
	return minimum
}

// ExponentialBackoff grows the delay geometrically from the call's retry delay.
//
// The delay calculation is:
//
//	base = minimum * (Multiplier ^ (attempt-1))
//	delay = min(base, MaxInterval) + random(0, Jitter*delay)
//
// Jitter is only ever added, so the delay never drops below minimum.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetries(4).
//	    WithRetryStrategy(&sdk.ExponentialBackoff{
//	        Multiplier:  2.0,
//	        MaxInterval: 10 * time.Second,
//	        Jitter:      0.2,
//	    })
type ExponentialBackoff struct {
	// Multiplier is the growth factor. Default: 2.0
	Multiplier float64

	// MaxInterval caps the base delay. Zero means no cap.
	MaxInterval time.Duration

	// Jitter is the randomization factor (0.0 to 1.0).
	Jitter float64
}

// NextInterval calculates the next retry interval
func (s *ExponentialBackoff) NextInterval(attempt int, minimum time.Duration) time.Duration {
	if attempt <= 0 {
		return minimum
	}
	multiplier := s.Multiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}

	interval := float64(minimum) * math.Pow(multiplier, float64(attempt-1))
	if s.MaxInterval > 0 && interval > float64(s.MaxInterval) {
		interval = float64(s.MaxInterval)
	}
	if interval < float64(minimum) {
		interval = float64(minimum)
	}
	if s.Jitter > 0 {
		interval += interval * s.Jitter * rand.Float64()
	}
	return time.Duration(interval)
}

// AttemptFunc performs one transport attempt. attempt is 1 for the first
// dispatch and increases with every re-attempt.
type AttemptFunc func(ctx context.Context, attempt int) (*Response, error)

// retryState is the per-call state of the retry machine. It is a local value
// of a single Execute call and never shared between calls.
type retryState struct {
	retries int
	budget  int
}

func (s *retryState) attempt() int {
	return s.retries + 1
}

func (s *retryState) canRetry(err error) bool {
	return IsRetryable(err) && s.retries < s.budget
}

// retryPolicy drives AttemptFuncs through the Attempting(n) state machine.
type retryPolicy struct {
	strategy RetryStrategy
	observer Observer
	logger   logrus.FieldLogger
}

func newRetryPolicy(strategy RetryStrategy, observer Observer, logger logrus.FieldLogger) *retryPolicy {
	if strategy == nil {
		strategy = ConstantBackoff{}
	}
	return &retryPolicy{strategy: strategy, observer: observer, logger: logger}
}

// Execute dispatches fn until it succeeds, fails non-transiently, exhausts
// req.RetryBudget re-attempts, or ctx ends. The returned error records how
// many attempts were made.
func (rp *retryPolicy) Execute(ctx context.Context, req *Request, fn AttemptFunc) (*Response, error) {
	state := retryState{budget: req.RetryBudget}

	for {
		resp, err := fn(ctx, state.attempt())
		if err == nil {
			return resp, nil
		}
		if !state.canRetry(err) {
			return nil, recordAttempts(err, state.attempt())
		}

		state.retries++
		delay := rp.strategy.NextInterval(state.retries, req.RetryDelay)
		if delay < req.RetryDelay {
			delay = req.RetryDelay
		}

		rp.observer.OnRetryAttempt(req.Method, req.Path, state.retries, delay, err)
		rp.logger.WithFields(logrus.Fields{
			"method":     req.Method,
			"path":       req.Path,
			"attempt":    state.retries,
			"delay":      delay.String(),
			"request_id": req.Headers.Get(HeaderRequestID),
		}).WithError(err).Warn("retrying after transient failure")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, canceledError(ctx, req, state.retries)
		case <-timer.C:
		}
	}
}

func recordAttempts(err error, attempts int) error {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		sdkErr.Attempts = attempts
	}
	return err
}
