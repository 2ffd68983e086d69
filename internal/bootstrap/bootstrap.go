// Package bootstrap wires the credential store, renewal coordinator, gateway, backend client,
// session state and login flows into one App.
package bootstrap

import (
	"fmt"
	"io"

	"github.com/jrsteele09/go-medassist-client/api"
	"github.com/jrsteele09/go-medassist-client/auth"
	"github.com/jrsteele09/go-medassist-client/gateway"
	"github.com/jrsteele09/go-medassist-client/internal/config"
	"github.com/jrsteele09/go-medassist-client/resources"
	"github.com/jrsteele09/go-medassist-client/sessions"
	"github.com/jrsteele09/go-medassist-client/token"
	"github.com/jrsteele09/go-medassist-client/token/filerepo"
	"github.com/jrsteele09/go-medassist-client/token/redisrepo"
	"github.com/jrsteele09/go-medassist-client/token/refresh"
	"github.com/jrsteele09/go-medassist-client/token/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type App struct {
	Config        config.Config
	Repo          token.Repo
	Store         *token.Store
	Preferences   *token.Preferences
	Coordinator   *refresh.Coordinator
	Gateway       *gateway.Gateway
	API           *api.Client
	Sessions      *sessions.Manager
	Resources     *resources.Set
	Validator     *auth.Validator
	TelegramLogin *auth.TelegramLogin
	TelegramLink  *auth.TelegramLink
	MiniApp       *auth.MiniApp

	closers []io.Closer
}

type options struct {
	repo      token.Repo
	logger    zerolog.Logger
	redirect  func()
	transport gateway.Doer
}

type Option func(*options)

// WithRepo overrides the repository chosen from configuration.
func WithRepo(repo token.Repo) Option {
	return func(o *options) {
		o.repo = repo
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRedirect is called once whenever an authenticated session expires.
func WithRedirect(fn func()) Option {
	return func(o *options) {
		o.redirect = fn
	}
}

// WithTransport replaces the net/http client at the end of every chain.
func WithTransport(transport gateway.Doer) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// NewRepo opens the credential repository selected by cfg.
func NewRepo(cfg config.StoreConfig) (token.Repo, error) {
	switch cfg.GetStoreKind() {
	case config.StoreMemory:
		return repofake.NewFakeRepo(), nil
	case config.StoreRedis:
		repo, err := redisrepo.New(redisrepo.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
			Prefix:   cfg.GetRedisPrefix(),
		})
		if err != nil {
			return nil, fmt.Errorf("[bootstrap.NewRepo] redis: %w", err)
		}
		return repo, nil
	default:
		repo, err := filerepo.New(cfg.GetTokenFile())
		if err != nil {
			return nil, fmt.Errorf("[bootstrap.NewRepo] file: %w", err)
		}
		return repo, nil
	}
}

// New builds the whole client and restores any persisted session.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[bootstrap.New] config is required")
	}
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = gateway.NewHTTPClient(cfg.GetRequestTimeout())
	}

	app := &App{Config: cfg}
	if o.repo == nil {
		repo, err := NewRepo(cfg)
		if err != nil {
			return nil, err
		}
		o.repo = repo
	}
	app.Repo = o.repo
	if c, ok := o.repo.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	var err error
	if app.Store, err = token.NewStore(o.repo,
		token.WithLookahead(cfg.GetTokenLookahead()),
		token.WithLogger(o.logger),
	); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}
	if app.Preferences, err = token.NewPreferences(o.repo); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}

	// The refresh call goes out without credential stages so a 401 from it can never recurse.
	raw := gateway.Chain(o.transport, gateway.RequestID(), gateway.Logging(o.logger))
	refresher, err := api.New(cfg.GetAPIURL(), raw, raw)
	if err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}
	if app.Coordinator, err = refresh.New(app.Store, refresher, refresh.WithLogger(o.logger)); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}

	if app.Gateway, err = gateway.New(o.transport, app.Store, app.Coordinator,
		gateway.WithLogger(o.logger),
		gateway.WithExpireHandler(func(reason error) {
			app.Sessions.Expire(reason)
		}),
	); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}
	if app.API, err = api.New(cfg.GetAPIURL(), app.Gateway, app.Gateway.Raw()); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}

	if app.Sessions, err = sessions.New(app.Store, app.API, app.Coordinator,
		sessions.WithLogger(o.logger),
		sessions.WithDefaultTimeZone(cfg.GetDefaultTimeZone()),
		sessions.WithLocalTimeZone(cfg.GetDefaultTimeZone()),
		sessions.WithRedirectToLogin(o.redirect),
	); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}

	app.Resources = resources.NewSet(app.API, app.Sessions.UserID, nil)
	app.Sessions.AddClearer(app.Resources)

	app.Validator = auth.NewValidator()
	if app.TelegramLogin, err = auth.NewTelegramLogin(app.API, app.Sessions,
		auth.WithPollInterval(cfg.GetTelegramPollInterval()),
		auth.WithMaxAttempts(cfg.GetTelegramPollMaxAttempts()),
		auth.WithLogger(o.logger),
	); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}
	if app.TelegramLink, err = auth.NewTelegramLink(app.API, app.Sessions,
		auth.WithLinkPollInterval(cfg.GetTelegramLinkPollInterval()),
		auth.WithLinkMaxAttempts(cfg.GetTelegramLinkPollMaxAttempts()),
		auth.WithLinkLogger(o.logger),
	); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}
	if app.MiniApp, err = auth.NewMiniApp(app.Sessions, auth.WithMiniAppLogger(o.logger)); err != nil {
		return nil, fmt.Errorf("[bootstrap.New] %w", err)
	}

	app.Sessions.Initialize()
	return app, nil
}

// Close releases the repository connection, if any.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
