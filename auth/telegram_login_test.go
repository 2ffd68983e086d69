package auth_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/auth"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/internal/fakebackend"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitPoll(t *testing.T, p *auth.Poll) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "polling did not finish")
	return err
}

func TestNewTelegramLogin_RequiresDependencies(t *testing.T) {
	f := newFixture(t)

	_, err := auth.NewTelegramLogin(nil, f.app.Sessions)
	require.Error(t, err)
	_, err = auth.NewTelegramLogin(f.app.API, nil)
	require.Error(t, err)
}

func TestTelegramLogin_Ticket(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { auth.NowTimeFunc = time.Now })

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	defer p.Stop()

	require.NotEmpty(t, p.Ticket.Token)
	require.True(t, strings.HasPrefix(p.Ticket.DeepLink, "https://t.me/"+fakebackend.DefaultBotName))
	require.Contains(t, p.Ticket.DeepLink, p.Ticket.Token)
	require.Equal(t, 5, p.Ticket.ExpiresInMinutes)
	require.Equal(t, now.Add(5*time.Minute), p.Ticket.ExpiresAt)
	require.Equal(t, "/api/auth/telegram-login-poll/"+p.Ticket.Token, p.Ticket.PollURL)
}

func TestTelegramLogin_AuthorizedOnLastAttempt(t *testing.T) {
	f := newFixture(t)
	f.srv.SetPollHook(func(s *fakebackend.Server, ticket string, attempt int) int {
		if attempt == auth.DefaultPollMaxAttempts {
			assert.NoError(t, s.AuthorizeTicket(ticket, f.user.ID))
		}
		return 0
	})

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, waitPoll(t, p))

	require.Equal(t, auth.PollAuthorized, p.State())
	require.Equal(t, auth.DefaultPollMaxAttempts, p.Attempts())
	require.Equal(t, auth.DefaultPollMaxAttempts, f.srv.PollCalls())

	snap := f.app.Sessions.Snapshot()
	require.True(t, snap.Authenticated)
	require.Equal(t, f.user.ID, snap.User.ID)
	require.True(t, f.app.Store.HasRefreshToken())
}

func TestTelegramLogin_TimesOutAndStopsPolling(t *testing.T) {
	f := newFixture(t)

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	err = waitPoll(t, p)

	require.ErrorIs(t, err, errors.ErrPollTimedOut)
	require.Equal(t, auth.PollTimedOut, p.State())
	require.Equal(t, auth.DefaultPollMaxAttempts, f.srv.PollCalls())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, auth.DefaultPollMaxAttempts, f.srv.PollCalls())
	require.False(t, f.app.Sessions.IsAuthenticated())
}

func TestTelegramLogin_Expired(t *testing.T) {
	f := newFixture(t)
	f.srv.SetPollHook(func(s *fakebackend.Server, ticket string, attempt int) int {
		if attempt == 3 {
			s.ExpireTicket(ticket)
		}
		return 0
	})

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	err = waitPoll(t, p)

	require.ErrorIs(t, err, errors.ErrLoginExpired)
	require.Equal(t, auth.PollExpired, p.State())
	require.Equal(t, 3, f.srv.PollCalls())
}

func TestTelegramLogin_ErrorsCountAsPending(t *testing.T) {
	f := newFixture(t)
	f.srv.SetPollHook(func(s *fakebackend.Server, ticket string, attempt int) int {
		if attempt < 4 {
			return http.StatusInternalServerError
		}
		assert.NoError(t, s.AuthorizeTicket(ticket, f.user.ID))
		return 0
	})

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, waitPoll(t, p))
	require.Equal(t, auth.PollAuthorized, p.State())
	require.Equal(t, 4, p.Attempts())
}

func TestTelegramLogin_Stop(t *testing.T) {
	f := newFixture(t)
	polled := make(chan struct{}, 1)
	f.srv.SetPollHook(func(s *fakebackend.Server, ticket string, attempt int) int {
		select {
		case polled <- struct{}{}:
		default:
		}
		return 0
	})

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	<-polled

	p.Stop()
	err = waitPoll(t, p)
	require.ErrorIs(t, err, errors.ErrPollCancelled)
	require.Equal(t, auth.PollCancelled, p.State())

	calls := f.srv.PollCalls()
	p.Stop()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, calls, f.srv.PollCalls())
	require.Equal(t, auth.PollCancelled, p.State())
}

func TestTelegramLogin_StopAfterAuthorizedKeepsState(t *testing.T) {
	f := newFixture(t)
	f.srv.SetPollHook(func(s *fakebackend.Server, ticket string, attempt int) int {
		assert.NoError(t, s.AuthorizeTicket(ticket, f.user.ID))
		return 0
	})

	p, err := f.app.TelegramLogin.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, waitPoll(t, p))

	p.Stop()
	require.Equal(t, auth.PollAuthorized, p.State())
	require.NoError(t, p.Err())
}

type failingCompleter struct{}

func (failingCompleter) CompleteLogin(apimodel.AuthResponse) error {
	return errors.ErrInternal
}

func TestTelegramLogin_CompleteFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.SetPollHook(func(s *fakebackend.Server, ticket string, attempt int) int {
		assert.NoError(t, s.AuthorizeTicket(ticket, f.user.ID))
		return 0
	})

	tl, err := auth.NewTelegramLogin(f.app.API, failingCompleter{},
		auth.WithPollInterval(time.Millisecond),
		auth.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	p, err := tl.Start(context.Background())
	require.NoError(t, err)
	err = waitPoll(t, p)
	require.ErrorIs(t, err, errors.ErrInternal)
	require.Equal(t, auth.PollFailed, p.State())
}

func TestPollState_String(t *testing.T) {
	require.Equal(t, "polling", auth.PollPolling.String())
	require.Equal(t, "timed_out", auth.PollTimedOut.String())
	require.False(t, auth.PollPolling.Terminal())
	require.True(t, auth.PollCancelled.Terminal())
}
