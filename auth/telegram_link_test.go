package auth_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-medassist-client/auth"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testTelegramID = int64(424242)

// countingSession runs a hook before every profile reload so tests can act on a given attempt.
type countingSession struct {
	auth.LinkSession
	reloads   atomic.Int32
	onRefresh func(attempt int)
}

func (s *countingSession) RefreshUser(ctx context.Context) (*users.User, error) {
	n := int(s.reloads.Add(1))
	if s.onRefresh != nil {
		s.onRefresh(n)
	}
	return s.LinkSession.RefreshUser(ctx)
}

func newLink(t *testing.T, f *fixture, session auth.LinkSession, opts ...auth.TelegramLinkOption) *auth.TelegramLink {
	t.Helper()
	opts = append([]auth.TelegramLinkOption{
		auth.WithLinkPollInterval(time.Millisecond),
		auth.WithLinkLogger(zerolog.Nop()),
	}, opts...)
	l, err := auth.NewTelegramLink(f.app.API, session, opts...)
	require.NoError(t, err)
	return l
}

func TestNewTelegramLink_RequiresDependencies(t *testing.T) {
	f := newFixture(t)

	_, err := auth.NewTelegramLink(nil, f.app.Sessions)
	require.Error(t, err)
	_, err = auth.NewTelegramLink(f.app.API, nil)
	require.Error(t, err)
}

func TestTelegramLink_RequiresLogin(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.TelegramLink.Start(context.Background())
	require.ErrorIs(t, err, errors.ErrNotAuthenticated)
	require.ErrorIs(t, f.app.TelegramLink.Unlink(context.Background()), errors.ErrNotAuthenticated)
}

func TestTelegramLink_LinkedOnThirdAttempt(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.False(t, f.app.Sessions.Snapshot().User.IsTelegramLinked())

	session := &countingSession{LinkSession: f.app.Sessions}
	session.onRefresh = func(attempt int) {
		if attempt == 3 {
			f.srv.LinkTelegram(testTelegramID, f.user.ID)
		}
	}

	p, err := newLink(t, f, session, auth.WithLinkMaxAttempts(10)).Start(context.Background())
	require.NoError(t, err)
	require.Contains(t, p.Ticket.DeepLink, "start=link_"+p.Ticket.Token)
	require.NoError(t, waitPoll(t, p))

	require.Equal(t, auth.PollAuthorized, p.State())
	require.Equal(t, 3, p.Attempts())

	u := f.app.Sessions.Snapshot().User
	require.True(t, u.IsTelegramLinked())
	require.Equal(t, testTelegramID, *u.TelegramUserID)
	require.Equal(t, testTelegramID, *f.app.Store.User().TelegramUserID)
}

func TestTelegramLink_TimesOut(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	p, err := f.app.TelegramLink.Start(context.Background())
	require.NoError(t, err)
	err = waitPoll(t, p)

	require.ErrorIs(t, err, errors.ErrPollTimedOut)
	require.Equal(t, auth.PollTimedOut, p.State())
	require.Equal(t, auth.DefaultLinkPollMaxAttempts, p.Attempts())
	require.False(t, f.app.Sessions.Snapshot().User.IsTelegramLinked())
}

func TestTelegramLink_Stop(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	reloaded := make(chan struct{}, 1)
	session := &countingSession{LinkSession: f.app.Sessions, onRefresh: func(int) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}}

	p, err := newLink(t, f, session, auth.WithLinkMaxAttempts(1000)).Start(context.Background())
	require.NoError(t, err)
	<-reloaded

	p.Stop()
	require.ErrorIs(t, waitPoll(t, p), errors.ErrPollCancelled)
	require.Equal(t, auth.PollCancelled, p.State())

	n := session.reloads.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, n, session.reloads.Load())
}

func TestTelegramLink_LogoutDuringPollingFails(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	session := &countingSession{LinkSession: f.app.Sessions}
	session.onRefresh = func(attempt int) {
		if attempt == 2 {
			f.app.Sessions.Logout(context.Background())
		}
	}

	p, err := newLink(t, f, session, auth.WithLinkMaxAttempts(10)).Start(context.Background())
	require.NoError(t, err)
	err = waitPoll(t, p)

	require.ErrorIs(t, err, errors.ErrNotAuthenticated)
	require.Equal(t, auth.PollFailed, p.State())
	require.Equal(t, 2, p.Attempts())
	require.Nil(t, f.app.Store.User())
}

func TestTelegramLink_Unlink(t *testing.T) {
	f := newFixture(t)
	f.srv.LinkTelegram(testTelegramID, f.user.ID)
	f.login(t)
	require.True(t, f.app.Sessions.Snapshot().User.IsTelegramLinked())

	require.NoError(t, f.app.TelegramLink.Unlink(context.Background()))

	require.False(t, f.app.Sessions.Snapshot().User.IsTelegramLinked())
	require.False(t, f.app.Store.User().IsTelegramLinked())
}
