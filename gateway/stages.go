package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/rs/zerolog"
)

const HeaderRequestID = "X-Request-Id"

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxRetried
)

// RequestIDFromContext returns the id set by the RequestID stage.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// IsRetried reports whether req is already the replay of a rejected request.
func IsRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(ctxRetried).(bool)
	return retried
}

// RequestID sets X-Request-Id when the caller did not.
func RequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			id := req.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
				req.Header.Set(HeaderRequestID, id)
			}
			req = req.WithContext(context.WithValue(req.Context(), ctxRequestID, id))
			return next.Do(req)
		})
	}
}

// Logging writes one debug line per request. Headers and bodies are never logged.
func Logging(logger zerolog.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			l := logger.With().
				Str("request_id", req.Header.Get(HeaderRequestID)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Logger()
			req = req.WithContext(l.WithContext(req.Context()))

			start := time.Now()
			resp, err := next.Do(req)
			if err != nil {
				l.Debug().Err(err).Dur("dur", time.Since(start)).Msg("http")
				return resp, err
			}
			l.Debug().Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("http")
			return resp, nil
		})
	}
}

// ProactiveRenewal renews a token that is about to expire before the request leaves.
// Failure is logged and the request continues with whatever token is stored.
func ProactiveRenewal(store CredentialStore, renewer Renewer, logger zerolog.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if !IsAuthEndpoint(req.URL.Path) && store.IsTokenExpiringSoon() && store.HasRefreshToken() {
				if _, err := renewer.Renew(req.Context(), ""); err != nil {
					logger.Warn().Err(err).Str("path", req.URL.Path).Msg("Proactive token renewal failed")
				}
			}
			return next.Do(req)
		})
	}
}

// AttachCredential sets the bearer header whenever a token is stored, auth endpoints included.
func AttachCredential(store CredentialStore) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if tok := store.AccessToken(); tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			return next.Do(req)
		})
	}
}

// ReactiveRenewal handles a 401 on a non-auth request: it renews through renewer and replays
// the request once. Without a refresh token, or when renewal fails, the session is expired.
func ReactiveRenewal(store CredentialStore, renewer Renewer, expire ExpireFunc, logger zerolog.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			eligible := !IsAuthEndpoint(req.URL.Path) && !IsRetried(req)
			if eligible {
				if err := bufferBody(req); err != nil {
					return nil, errors.Wrapf(err, "[ReactiveRenewal] buffer body")
				}
			}

			resp, err := next.Do(req)
			if err != nil || !eligible || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			discard(resp)

			if !store.HasRefreshToken() {
				expire(errors.ErrSessionExpired)
				return nil, errors.Wrapf(errors.ErrSessionExpired, "[ReactiveRenewal] %s %s", req.Method, req.URL.Path)
			}

			stale := bearer(req)
			fresh, err := renewer.Renew(req.Context(), stale)
			if err != nil {
				if ctxErr := req.Context().Err(); ctxErr != nil {
					return nil, ctxErr
				}
				expire(err)
				return nil, err
			}

			retry, err := replay(req, fresh)
			if err != nil {
				return nil, err
			}
			logger.Debug().Str("path", req.URL.Path).Msg("Replaying request with renewed token")
			return next.Do(retry)
		})
	}
}

func bearer(req *http.Request) string {
	const prefix = "Bearer "
	h := req.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// bufferBody makes req.Body re-readable through GetBody.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func replay(req *http.Request, accessToken string) (*http.Request, error) {
	retry := req.Clone(context.WithValue(req.Context(), ctxRetried, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrapf(err, "[ReactiveRenewal] rewind body")
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+accessToken)
	return retry, nil
}

func discard(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
