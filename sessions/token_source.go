package sessions

import (
	"context"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"golang.org/x/oauth2"
)

// TokenSource adapts the session to golang.org/x/oauth2, so oauth2.NewClient can talk to the
// backend with the same renewal rules as the gateway. It is safe for concurrent use.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c := ts.m.store.Credentials()
	if c.AccessToken == "" {
		return nil, errors.ErrNotAuthenticated
	}
	if c.RefreshToken != "" && ts.m.store.IsTokenExpiringSoon() {
		if _, err := ts.m.coordinator.Renew(ts.ctx, ""); err != nil {
			return nil, errors.Wrapf(err, "[tokenSource.Token]")
		}
		c = ts.m.store.Credentials()
	}
	return c.OAuth2(), nil
}
