package fakebackend

import (
	"time"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
)

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

func (s *Server) RevokeAllRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]string)
}

// HasRefreshToken reports whether tok would still be accepted by /auth/refresh.
func (s *Server) HasRefreshToken(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refreshTokens[tok]
	return ok
}

// SetFailRefresh makes /auth/refresh answer 401 regardless of the token.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetRefreshDelay holds every /auth/refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) PollCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCalls
}

func (s *Server) SetPollHook(hook PollHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollHook = hook
}

// AuthorizeTicket simulates the user pressing Start in the bot for a login ticket.
func (s *Server) AuthorizeTicket(ticketToken, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketToken]
	if !ok {
		return errors.ErrNotFound
	}
	if _, ok := s.accounts[userID]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "user %s", userID)
	}
	t.userID = userID
	return nil
}

func (s *Server) ExpireTicket(ticketToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[ticketToken]; ok {
		t.expired = true
	}
}

// IssueWebLoginToken returns a one-time token as the bot would put in a web-login link.
func (s *Server) IssueWebLoginToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := randomToken(32)
	s.webLoginTokens[tok] = userID
	return tok
}

// LinkTelegram binds a Telegram account to a user, as /start with a link token would.
func (s *Server) LinkTelegram(telegramUserID int64, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telegramLinks[telegramUserID] = userID
	if a, ok := s.accounts[userID]; ok {
		id := telegramUserID
		a.user.TelegramUserID = &id
	}
}
