package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLinkPollInterval    = 2 * time.Second
	DefaultLinkPollMaxAttempts = 15
)

// LinkAPI is the part of the backend client account linking needs.
type LinkAPI interface {
	GenerateTelegramLinkToken(ctx context.Context, userID string) (*apimodel.TelegramLinkTokenResponse, error)
	UnlinkTelegram(ctx context.Context, userID string) error
}

// LinkSession is the logged-in session whose profile shows the link once the bot confirmed it.
type LinkSession interface {
	UserID() string
	RefreshUser(ctx context.Context) (*users.User, error)
}

// TelegramLink attaches a Telegram account to the logged-in user. The user opens the deep link,
// presses Start in the bot, and the profile is reloaded until it carries a Telegram id.
type TelegramLink struct {
	api         LinkAPI
	session     LinkSession
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

type TelegramLinkOption func(*TelegramLink)

func WithLinkPollInterval(d time.Duration) TelegramLinkOption {
	return func(l *TelegramLink) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLinkMaxAttempts(n int) TelegramLinkOption {
	return func(l *TelegramLink) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithLinkLogger(logger zerolog.Logger) TelegramLinkOption {
	return func(l *TelegramLink) {
		l.logger = logger
	}
}

func NewTelegramLink(linkAPI LinkAPI, session LinkSession, options ...TelegramLinkOption) (*TelegramLink, error) {
	if linkAPI == nil {
		return nil, errors.New("[NewTelegramLink] link api is required")
	}
	if session == nil {
		return nil, errors.New("[NewTelegramLink] session is required")
	}
	l := &TelegramLink{
		api:         linkAPI,
		session:     session,
		interval:    DefaultLinkPollInterval,
		maxAttempts: DefaultLinkPollMaxAttempts,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Start requests a link token and polls the profile in the background. The poll ends in
// PollAuthorized once the account is linked.
func (l *TelegramLink) Start(ctx context.Context) (*Poll, error) {
	userID := l.session.UserID()
	if userID == "" {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "[TelegramLink.Start]")
	}
	resp, err := l.api.GenerateTelegramLinkToken(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "[TelegramLink.Start] link token")
	}
	p, pollCtx := newPoll(ctx, Ticket{
		Token:            resp.Token,
		DeepLink:         resp.DeepLink,
		ExpiresInMinutes: resp.ExpiresInMinutes,
		ExpiresAt:        NowTimeFunc().Add(time.Duration(resp.ExpiresInMinutes) * time.Minute),
	})
	l.logger.Info().Str("user_id", userID).Msg("Telegram link started")
	go pollEvery(pollCtx, p, l.interval, l.maxAttempts, l.logger, l.check)
	return p, nil
}

func (l *TelegramLink) check(ctx context.Context, p *Poll, attempt int) bool {
	u, err := l.session.RefreshUser(ctx)
	if ctx.Err() != nil {
		p.finish(PollCancelled, errors.ErrPollCancelled)
		return true
	}

	switch {
	case errors.Is(err, errors.ErrNotAuthenticated):
		p.finish(PollFailed, errors.Wrapf(err, "[TelegramLink.check]"))
		return true
	case err != nil:
		l.logger.Debug().Err(err).Int("attempt", attempt).Msg("Profile reload failed")
	case u.IsTelegramLinked():
		l.logger.Info().Int("attempt", attempt).Msg("Telegram account linked")
		p.finish(PollAuthorized, nil)
		return true
	}
	return false
}

// Unlink detaches the Telegram account and reloads the profile.
func (l *TelegramLink) Unlink(ctx context.Context) error {
	userID := l.session.UserID()
	if userID == "" {
		return errors.Wrapf(errors.ErrNotAuthenticated, "[TelegramLink.Unlink]")
	}
	if err := l.api.UnlinkTelegram(ctx, userID); err != nil {
		return errors.Wrapf(err, "[TelegramLink.Unlink]")
	}
	if _, err := l.session.RefreshUser(ctx); err != nil {
		return errors.Wrapf(err, "[TelegramLink.Unlink] reload profile")
	}
	l.logger.Info().Str("user_id", userID).Msg("Telegram account unlinked")
	return nil
}
