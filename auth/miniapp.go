package auth

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WebAppSession is the part of session state the Mini-App flow needs.
type WebAppSession interface {
	IsAuthenticated() bool
	TelegramWebAppLogin(ctx context.Context, initData string) error
}

// MiniAppResult describes what Init did. Message is set only when the login failed.
type MiniAppResult struct {
	Attempted bool
	Err       error
	Message   string
}

// MiniApp logs in with the signed payload Telegram hands to a Mini-App on launch.
type MiniApp struct {
	session WebAppSession
	logger  zerolog.Logger
}

type MiniAppOption func(*MiniApp)

func WithMiniAppLogger(logger zerolog.Logger) MiniAppOption {
	return func(m *MiniApp) {
		m.logger = logger
	}
}

func NewMiniApp(session WebAppSession, options ...MiniAppOption) (*MiniApp, error) {
	if session == nil {
		return nil, errors.New("[NewMiniApp] session is required")
	}
	m := &MiniApp{session: session, logger: log.Logger}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Init submits initData once. It does nothing when a session already exists or there is no payload.
// A failure is reported in the result and never returned to block the caller.
func (m *MiniApp) Init(ctx context.Context, initData string) MiniAppResult {
	if initData == "" || m.session.IsAuthenticated() {
		return MiniAppResult{}
	}

	res := MiniAppResult{Attempted: true}
	err := CheckInitData(initData)
	if err == nil {
		err = m.session.TelegramWebAppLogin(ctx, initData)
	}
	if err != nil {
		res.Err = err
		res.Message = MapTelegramAuthError(err)
		m.logger.Warn().Err(err).Msg("Mini-App login failed")
		return res
	}
	m.logger.Info().Msg("Mini-App login succeeded")
	return res
}

// CheckInitData rejects payloads that cannot possibly verify. The signature itself is checked by the backend.
func CheckInitData(initData string) error {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInitData, "[CheckInitData] %v", err)
	}
	for _, field := range []string{"hash", "auth_date"} {
		if values.Get(field) == "" {
			return errors.Wrapf(errors.ErrInvalidInitData, "[CheckInitData] missing %s", field)
		}
	}
	return nil
}
