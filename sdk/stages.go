package sdk

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// requestID tags the call with an X-Request-ID unless the caller set one.
// Retries reuse the same id.
func requestID() RequestStage {
	return func(ctx context.Context, req *Request, _ Session) error {
		if req.Headers.Get(HeaderRequestID) == "" {
			req.Headers.Set(HeaderRequestID, uuid.NewString())
		}
		return nil
	}
}

// defaultHeaders fills Accept, User-Agent and the configured headers without
// overriding headers set on the request itself.
func defaultHeaders(headers map[string]string) RequestStage {
	return func(ctx context.Context, req *Request, _ Session) error {
		if req.Headers.Get(HeaderAccept) == "" {
			if req.Binary {
				req.Headers.Set(HeaderAccept, "application/octet-stream, */*")
			} else {
				req.Headers.Set(HeaderAccept, "application/json")
			}
		}
		for key, value := range headers {
			if req.Headers.Get(key) == "" {
				req.Headers.Set(key, value)
			}
		}
		if req.Headers.Get(HeaderUserAgent) == "" {
			req.Headers.Set(HeaderUserAgent, DefaultUserAgent)
		}
		return nil
	}
}

// cacheBust keeps intermediaries from answering a connectivity probe.
func cacheBust() RequestStage {
	return func(ctx context.Context, req *Request, _ Session) error {
		if req.Probe {
			req.Headers.Set("Cache-Control", "no-cache")
			req.Headers.Set("Pragma", "no-cache")
		}
		return nil
	}
}

// injectAuth attaches the stored token as a bearer credential.
func injectAuth() RequestStage {
	return func(ctx context.Context, req *Request, session Session) error {
		if session.Authenticated() {
			req.Headers.Set(HeaderAuthorization, "Bearer "+session.Token)
		}
		return nil
	}
}

// requireAuth rejects a call that needs a token when none is stored and
// sends the user to the login page. Probes and calls made from the login
// page itself go through.
func requireAuth(navigator Navigator, loginPath string, logger logrus.FieldLogger) RequestStage {
	return func(ctx context.Context, req *Request, session Session) error {
		if !req.RequiresAuth || req.Probe || session.Authenticated() {
			return nil
		}
		if navigator.Location() == loginPath {
			return nil
		}

		logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).Debug("no session, redirecting to login")
		if err := navigator.Navigate(ctx, loginPath); err != nil {
			logger.WithError(err).Warn("failed to navigate to login")
		}
		return NewError(FailureAuth, "no stored credentials").WithCause(ErrAuthRequired).withRequest(req)
	}
}

// expireSession clears the session the failed call was made with and sends
// the user to the login page. The clear is a compare-and-clear on the
// session generation, so when several calls fail with the same token only
// the first one clears and navigates.
func expireSession(store *SessionStore, navigator Navigator, loginPath, probePath string, observer Observer, logger logrus.FieldLogger) ResponseStage {
	return func(ctx context.Context, req *Request, resp *Response, err error) (*Response, error) {
		var sdkErr *Error
		if err == nil || !errors.As(err, &sdkErr) || sdkErr.Kind != FailureAuth {
			return resp, err
		}
		if req.Probe || req.Path == probePath {
			return resp, err
		}
		expired := *sdkErr
		expired.cause = ErrSessionExpired

		session, ok := SessionFromContext(ctx)
		if !ok || !session.Authenticated() {
			// Nothing to clear; the user still belongs on the login page.
			if navigator.Location() != loginPath {
				if navErr := navigator.Navigate(ctx, loginPath); navErr != nil {
					logger.WithError(navErr).Warn("failed to navigate to login")
				}
			}
			return nil, &expired
		}

		cleared, clearErr := store.ClearIfCurrent(context.WithoutCancel(ctx), session.Generation())
		if clearErr != nil {
			logger.WithError(clearErr).Warn("failed to remove persisted session")
		}
		if cleared {
			logger.WithFields(logrus.Fields{
				"method":      req.Method,
				"path":        req.Path,
				"status_code": sdkErr.StatusCode,
				"request_id":  sdkErr.RequestID,
			}).Warn("session rejected by backend, credentials cleared")
			observer.OnSessionEvent(SessionEvent{Type: SessionExpired, Path: req.Path, At: time.Now()})

			if navigator.Location() != loginPath {
				if navErr := navigator.Navigate(ctx, loginPath); navErr != nil {
					logger.WithError(navErr).Warn("failed to navigate to login")
				}
			}
		}

		return nil, &expired
	}
}
