package token

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	KeyAccessToken  = "token"
	KeyRefreshToken = "refreshToken"
	KeyTokenExpires = "tokenExpires"
	KeyUser         = "user"

	DefaultLookahead = 60 * time.Second
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store persists the credential record. It performs no network I/O.
type Store struct {
	repo      Repo
	lookahead time.Duration
	logger    zerolog.Logger

	// mu makes SaveCredentials and Credentials atomic with respect to each other.
	mu sync.RWMutex
}

type StoreOption func(*Store)

// WithLookahead sets how long before expiry a token counts as expiring soon.
func WithLookahead(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(repo Repo, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repo is required")
	}
	s := &Store{
		repo:      repo,
		lookahead: DefaultLookahead,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getString(KeyAccessToken)
}

func (s *Store) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Set(KeyAccessToken, token)
}

func (s *Store) RemoveAccessToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(KeyAccessToken)
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getString(KeyRefreshToken)
}

func (s *Store) SetRefreshToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Set(KeyRefreshToken, token)
}

func (s *Store) RemoveRefreshToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(KeyRefreshToken)
}

// TokenExpires returns the stored expiry; ok is false when absent or unparseable.
func (s *Store) TokenExpires() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getExpires()
}

func (s *Store) SetTokenExpires(expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Set(KeyTokenExpires, apimodel.FormatTimestamp(expires))
}

func (s *Store) RemoveTokenExpires() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(KeyTokenExpires)
}

// User returns the cached profile, or nil when absent. A record that fails to decode is treated as absent.
func (s *Store) User() *users.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser()
}

func (s *Store) SetUser(user users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setUser(user)
}

func (s *Store) RemoveUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(KeyUser)
}

// ClearAll removes the four credential keys. Preferences are left alone.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(KeyAccessToken, KeyRefreshToken, KeyTokenExpires, KeyUser); err != nil {
		return errors.Wrapf(err, "[Store.ClearAll] delete credentials")
	}
	return nil
}

// IsTokenExpiringSoon is true when no expiry is known or less than the lookahead remains.
func (s *Store) IsTokenExpiringSoon() bool {
	expires, ok := s.TokenExpires()
	if !ok {
		return true
	}
	return expires.Sub(NowTimeFunc()) < s.lookahead
}

func (s *Store) HasRefreshToken() bool {
	return s.RefreshToken() != ""
}

// Credentials returns a consistent snapshot of the whole record.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentialsLocked()
}

func (s *Store) credentialsLocked() Credentials {
	c := Credentials{
		AccessToken:  s.getString(KeyAccessToken),
		RefreshToken: s.getString(KeyRefreshToken),
		User:         s.getUser(),
	}
	if exp, ok := s.getExpires(); ok {
		c.ExpiresAt = &exp
	}
	return c
}

// SaveCredentials writes a record under one lock. Empty refresh token, nil expiry and nil user
// leave the stored values untouched. A nil expiry is derived from the access token's exp claim when possible.
func (s *Store) SaveCredentials(c Credentials) error {
	_, err := s.CommitCredentials(c)
	return err
}

// CommitCredentials writes c like SaveCredentials and returns the record as stored, read back
// under the same lock so no concurrent writer can slip in between.
func (s *Store) CommitCredentials(c Credentials) (Credentials, error) {
	if c.AccessToken == "" {
		return Credentials{}, errors.New("[Store.CommitCredentials] access token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Set(KeyAccessToken, c.AccessToken); err != nil {
		return Credentials{}, errors.Wrapf(err, "[Store.CommitCredentials] access token")
	}
	if c.RefreshToken != "" {
		if err := s.repo.Set(KeyRefreshToken, c.RefreshToken); err != nil {
			return Credentials{}, errors.Wrapf(err, "[Store.CommitCredentials] refresh token")
		}
	}

	expires := c.ExpiresAt
	if expires == nil {
		if exp, ok := ExpiryFromJWT(c.AccessToken); ok {
			expires = &exp
		}
	}
	if expires != nil {
		if err := s.repo.Set(KeyTokenExpires, apimodel.FormatTimestamp(*expires)); err != nil {
			return Credentials{}, errors.Wrapf(err, "[Store.CommitCredentials] token expiry")
		}
	}

	if c.User != nil {
		if err := s.setUser(*c.User); err != nil {
			return Credentials{}, errors.Wrapf(err, "[Store.CommitCredentials] user")
		}
	}
	return s.credentialsLocked(), nil
}

func (s *Store) getString(key string) string {
	v, ok, err := s.repo.Get(key)
	if err != nil {
		s.logger.Err(err).Str("key", key).Msg("Failed to read credential store")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Store) getExpires() (time.Time, bool) {
	raw := s.getString(KeyTokenExpires)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := apimodel.ParseTimestamp(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stored token expiry is not a timestamp")
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) getUser() *users.User {
	raw := s.getString(KeyUser)
	if raw == "" {
		return nil
	}
	var u users.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.Warn().Err(errors.Wrapf(errors.ErrCorruptRecord, "%v", err)).Msg("Stored user is unreadable")
		return nil
	}
	return &u
}

func (s *Store) setUser(user users.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.repo.Set(KeyUser, string(b))
}
