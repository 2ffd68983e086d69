package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 60
)

// LoginAPI is the part of the backend client the deep-link flow needs.
type LoginAPI interface {
	TelegramLoginInit(ctx context.Context) (*apimodel.TelegramLoginInitResponse, error)
	TelegramLoginPoll(ctx context.Context, token string) (*apimodel.TelegramLoginPollResponse, error)
}

// SessionCompleter receives the record once the bot confirms the login.
type SessionCompleter interface {
	CompleteLogin(resp apimodel.AuthResponse) error
}

type PollState int

const (
	PollIdle PollState = iota
	PollPolling
	PollAuthorized
	PollExpired
	PollTimedOut
	PollCancelled
	PollFailed // confirmed but the result could not be applied
)

func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollPolling:
		return "polling"
	case PollAuthorized:
		return "authorized"
	case PollExpired:
		return "expired"
	case PollTimedOut:
		return "timed_out"
	case PollCancelled:
		return "cancelled"
	case PollFailed:
		return "failed"
	}
	return "unknown"
}

func (s PollState) Terminal() bool {
	return s >= PollAuthorized
}

// Ticket is what the user needs to confirm the login in the bot.
type Ticket struct {
	Token            string
	DeepLink         string
	ExpiresInMinutes int
	PollURL          string
	ExpiresAt        time.Time
}

type TelegramLogin struct {
	api         LoginAPI
	session     SessionCompleter
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

type TelegramLoginOption func(*TelegramLogin)

func WithPollInterval(d time.Duration) TelegramLoginOption {
	return func(t *TelegramLogin) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithMaxAttempts(n int) TelegramLoginOption {
	return func(t *TelegramLogin) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func WithLogger(logger zerolog.Logger) TelegramLoginOption {
	return func(t *TelegramLogin) {
		t.logger = logger
	}
}

func NewTelegramLogin(loginAPI LoginAPI, session SessionCompleter, options ...TelegramLoginOption) (*TelegramLogin, error) {
	if loginAPI == nil {
		return nil, errors.New("[NewTelegramLogin] login api is required")
	}
	if session == nil {
		return nil, errors.New("[NewTelegramLogin] session is required")
	}
	t := &TelegramLogin{
		api:         loginAPI,
		session:     session,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultPollMaxAttempts,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// Start requests a login ticket and begins polling it in the background.
// Polling ends on its own or when Stop is called or ctx is cancelled.
func (t *TelegramLogin) Start(ctx context.Context) (*Poll, error) {
	resp, err := t.api.TelegramLoginInit(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[TelegramLogin.Start] init")
	}
	p, pollCtx := newPoll(ctx, Ticket{
		Token:            resp.Token,
		DeepLink:         resp.DeepLink,
		ExpiresInMinutes: resp.ExpiresInMinutes,
		PollURL:          resp.PollURL,
		ExpiresAt:        NowTimeFunc().Add(time.Duration(resp.ExpiresInMinutes) * time.Minute),
	})
	t.logger.Info().Int("expires_in_minutes", resp.ExpiresInMinutes).Msg("Telegram login started")
	go pollEvery(pollCtx, p, t.interval, t.maxAttempts, t.logger, t.check)
	return p, nil
}

func (t *TelegramLogin) check(ctx context.Context, p *Poll, attempt int) bool {
	resp, err := t.api.TelegramLoginPoll(ctx, p.Ticket.Token)
	if ctx.Err() != nil {
		p.finish(PollCancelled, errors.ErrPollCancelled)
		return true
	}

	switch {
	case err != nil:
		t.logger.Debug().Err(err).Int("attempt", attempt).Msg("Telegram login poll failed")
	case resp.Status == apimodel.PollAuthorized:
		authResp, ok := resp.AuthResponse()
		if !ok {
			t.logger.Warn().Int("attempt", attempt).Msg("Authorized poll answer carries no token")
			return false
		}
		if err := t.session.CompleteLogin(authResp); err != nil {
			p.finish(PollFailed, errors.Wrapf(err, "[TelegramLogin.check]"))
			return true
		}
		t.logger.Info().Int("attempt", attempt).Msg("Telegram login authorized")
		p.finish(PollAuthorized, nil)
		return true
	case resp.Status == apimodel.PollExpired:
		t.logger.Info().Int("attempt", attempt).Msg("Telegram login ticket expired")
		p.finish(PollExpired, errors.ErrLoginExpired)
		return true
	}
	return false
}

// pollEvery calls check on every tick until it reports a terminal state, ctx ends or
// maxAttempts checks were made.
func pollEvery(ctx context.Context, p *Poll, interval time.Duration, maxAttempts int, logger zerolog.Logger,
	check func(ctx context.Context, p *Poll, attempt int) bool) {
	defer close(p.done)
	defer p.cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.finish(PollCancelled, errors.ErrPollCancelled)
			return
		case <-ticker.C:
		}

		attempt := p.nextAttempt()
		if check(ctx, p, attempt) {
			return
		}
		if attempt >= maxAttempts {
			logger.Info().Int("attempt", attempt).Msg("Telegram polling gave up")
			p.finish(PollTimedOut, errors.ErrPollTimedOut)
			return
		}
	}
}

func newPoll(ctx context.Context, ticket Ticket) (*Poll, context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	return &Poll{
		Ticket: ticket,
		state:  PollPolling,
		cancel: cancel,
		done:   make(chan struct{}),
	}, pollCtx
}

// Poll is a running deep-link flow, login or account linking. All methods are safe for concurrent use.
type Poll struct {
	Ticket Ticket

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    PollState
	attempts int
	err      error
}

// Stop abandons the flow. Calling it again, or after polling ended, does nothing.
func (p *Poll) Stop() {
	p.cancel()
}

// Done is closed once the poll reached a terminal state and no more requests will be sent.
func (p *Poll) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until polling ends and returns its error, nil on success.
func (p *Poll) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poll) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poll) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *Poll) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Poll) nextAttempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	return p.attempts
}

func (p *Poll) finish(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return
	}
	p.state = state
	p.err = err
}
