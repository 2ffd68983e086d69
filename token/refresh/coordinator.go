// Package refresh serialises access token renewal so that at most one refresh call is in flight.
package refresh

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-medassist-client/api"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Refresher exchanges a refresh token for a new credential record.
// Implementations must not route through the credential-attaching gateway.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*apimodel.AuthResponse, error)
}

// Listener is told about every record the coordinator persists.
type Listener func(token.Credentials)

// Continuation is a waiter settled once the in-flight renewal finishes.
// Exactly one of Resolve or Reject is called.
type Continuation struct {
	Resolve func(accessToken string)
	Reject  func(err error)
}

type State int

const (
	Idle State = iota
	Renewing
)

func (s State) String() string {
	if s == Renewing {
		return "renewing"
	}
	return "idle"
}

type Coordinator struct {
	store     *token.Store
	refresher Refresher
	logger    zerolog.Logger

	mu        sync.Mutex
	state     State
	queue     []Continuation
	listeners []Listener

	// last refresh token the backend refused, with the error it produced
	rejectedToken string
	rejectedErr   error
}

type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func New(store *token.Store, refresher Refresher, options ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[refresh.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[refresh.New] refresher is required")
	}
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// AddListener registers l for successful renewals.
func (c *Coordinator) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enqueue appends cont to the waiters and starts a renewal if none is running.
func (c *Coordinator) Enqueue(ctx context.Context, cont Continuation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(ctx, cont)
}

// Renew returns a fresh access token, blocking until the shared renewal completes or ctx ends.
// staleToken is the token the caller saw rejected; if the store already holds a different one
// and nothing is running, that token is returned without a network call.
func (c *Coordinator) Renew(ctx context.Context, staleToken string) (string, error) {
	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)

	c.mu.Lock()
	if c.state == Idle && staleToken != "" {
		if current := c.store.AccessToken(); current != "" && current != staleToken {
			c.mu.Unlock()
			return current, nil
		}
	}
	c.enqueueLocked(ctx, Continuation{
		Resolve: func(t string) { done <- result{token: t} },
		Reject:  func(err error) { done <- result{err: err} },
	})
	c.mu.Unlock()

	select {
	case r := <-done:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) enqueueLocked(ctx context.Context, cont Continuation) {
	c.queue = append(c.queue, cont)
	if c.state == Renewing {
		return
	}
	c.state = Renewing
	// The renewal outlives any single waiter.
	go c.run(context.WithoutCancel(ctx))
}

func (c *Coordinator) run(ctx context.Context) {
	accessToken, creds, err := c.renew(ctx)

	c.mu.Lock()
	queue := c.queue
	listeners := append([]Listener(nil), c.listeners...)
	c.queue = nil
	c.state = Idle
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Int("waiters", len(queue)).Msg("Token renewal failed")
		for _, cont := range queue {
			if cont.Reject != nil {
				cont.Reject(err)
			}
		}
		return
	}

	c.logger.Debug().Int("waiters", len(queue)).Msg("Token renewed")
	for _, l := range listeners {
		l(creds)
	}
	for _, cont := range queue {
		if cont.Resolve != nil {
			cont.Resolve(accessToken)
		}
	}
}

// renew performs the refresh call and persists the result before any waiter is settled.
func (c *Coordinator) renew(ctx context.Context) (string, token.Credentials, error) {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		return "", token.Credentials{}, errors.ErrNoRefreshToken
	}

	c.mu.Lock()
	if refreshToken == c.rejectedToken {
		err := c.rejectedErr
		c.mu.Unlock()
		return "", token.Credentials{}, err
	}
	c.mu.Unlock()

	resp, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		err = fmt.Errorf("[Coordinator.renew] %w: %w", errors.ErrRenewalFailed, err)
		if isRejection(err) {
			c.mu.Lock()
			c.rejectedToken, c.rejectedErr = refreshToken, err
			c.mu.Unlock()
		}
		return "", token.Credentials{}, err
	}
	if resp == nil || resp.Token == "" {
		return "", token.Credentials{}, errors.Wrapf(errors.ErrRenewalFailed, "[Coordinator.renew] empty response")
	}

	creds := token.FromAuthResponse(*resp)
	creds.User = nil // profile is owned by session state
	stored, err := c.store.CommitCredentials(creds)
	if err != nil {
		return "", token.Credentials{}, errors.Wrapf(err, "[Coordinator.renew] persist")
	}
	return resp.Token, stored, nil
}

// isRejection reports whether the backend refused the refresh token itself. Such a token is
// never sent again; transport failures and 5xx answers stay retryable.
func isRejection(err error) bool {
	return api.IsStatus(err, http.StatusBadRequest) ||
		api.IsStatus(err, http.StatusUnauthorized) ||
		api.IsStatus(err, http.StatusForbidden)
}
