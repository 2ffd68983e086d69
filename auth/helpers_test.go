package auth_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/bootstrap"
	"github.com/jrsteele09/go-medassist-client/internal/config"
	"github.com/jrsteele09/go-medassist-client/internal/fakebackend"
	"github.com/jrsteele09/go-medassist-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testName     = "Anna"
	testEmail    = "anna@example.com"
	testPassword = "secret1"
)

type fixture struct {
	srv  *fakebackend.Server
	app  *bootstrap.App
	user users.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := fakebackend.New(fakebackend.Options{})
	t.Cleanup(srv.Close)
	u, err := srv.CreateUser(testName, testEmail, testPassword)
	require.NoError(t, err)

	t.Setenv("API_URL", srv.APIURL())
	t.Setenv("TOKEN_STORE", "memory")
	t.Setenv("TELEGRAM_POLL_INTERVAL", "2ms")
	t.Setenv("TELEGRAM_LINK_POLL_INTERVAL", "2ms")
	cfg, err := config.New()
	require.NoError(t, err)

	app, err := bootstrap.New(cfg, bootstrap.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return &fixture{srv: srv, app: app, user: u}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	err := f.app.Sessions.Login(context.Background(), apimodel.LoginRequest{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
}
