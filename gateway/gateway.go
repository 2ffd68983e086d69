// Package gateway sends backend requests through an ordered chain of stages that keep the
// access token fresh: proactive renewal before sending, bearer attachment, and a single
// replay after a 401 once the shared renewal has finished.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware decorates a Doer.
type Middleware func(next Doer) Doer

// Chain wraps base so that mw[0] runs first.
func Chain(base Doer, mw ...Middleware) Doer {
	chained := base
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// CredentialStore is the part of the credential store the gateway reads.
type CredentialStore interface {
	AccessToken() string
	HasRefreshToken() bool
	IsTokenExpiringSoon() bool
	ClearAll() error
}

// Renewer obtains a fresh access token, joining any renewal already in flight.
type Renewer interface {
	Renew(ctx context.Context, staleToken string) (string, error)
}

// ExpireFunc ends the session: it purges credentials and sends the user back to login.
type ExpireFunc func(reason error)

// IsAuthEndpoint reports whether path belongs to the /auth/ family, which never triggers renewal.
func IsAuthEndpoint(path string) bool {
	return strings.Contains(path, "/auth/")
}

// NewHTTPClient is the transport used at the end of every chain.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type Gateway struct {
	raw    Doer
	chain  Doer
	store  CredentialStore
	expire ExpireFunc
	logger zerolog.Logger
}

type Option func(*Gateway)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithExpireHandler replaces the default handler, which only clears the store.
func WithExpireHandler(fn ExpireFunc) Option {
	return func(g *Gateway) {
		g.expire = fn
	}
}

func New(transport Doer, store CredentialStore, renewer Renewer, options ...Option) (*Gateway, error) {
	if transport == nil {
		return nil, errors.New("[gateway.New] transport is required")
	}
	if store == nil {
		return nil, errors.New("[gateway.New] store is required")
	}
	if renewer == nil {
		return nil, errors.New("[gateway.New] renewer is required")
	}

	g := &Gateway{
		store:  store,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.expire == nil {
		g.expire = g.clearStore
	}

	g.raw = Chain(transport,
		RequestID(),
		Logging(g.logger),
	)
	g.chain = Chain(transport,
		RequestID(),
		Logging(g.logger),
		ProactiveRenewal(store, renewer, g.logger),
		AttachCredential(store),
		ReactiveRenewal(store, renewer, g.expire, g.logger),
	)
	return g, nil
}

// Do sends req through every stage. req itself is not modified.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	return g.chain.Do(req.Clone(req.Context()))
}

// Raw returns a Doer that skips every credential stage. The refresh call must use it.
func (g *Gateway) Raw() Doer {
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		return g.raw.Do(req.Clone(req.Context()))
	})
}

func (g *Gateway) clearStore(reason error) {
	g.logger.Warn().Err(reason).Msg("Session expired, clearing credentials")
	if err := g.store.ClearAll(); err != nil {
		g.logger.Err(err).Msg("Failed to clear credentials")
	}
}
