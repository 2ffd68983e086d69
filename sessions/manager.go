// Package sessions exposes the authenticated session as observable state: who is logged in,
// whether an operation is running and the last human-readable error. Every login channel ends
// in the same record, and logout or expiry clears it together with all per-session caches.
package sessions

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-medassist-client/api"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/token"
	"github.com/jrsteele09/go-medassist-client/token/refresh"
	"github.com/jrsteele09/go-medassist-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default error texts used when the backend gives no message.
const (
	MsgRegisterFailed    = "Registration failed"
	MsgLoginFailed       = "Invalid email or password"
	MsgLogoutAllFailed   = "Failed to log out of all devices"
	MsgTelegramLogin     = "Telegram login failed"
	MsgTelegramWebApp    = "Telegram authorization failed"
	MsgSessionExpired    = "Your session has expired, please log in again"
	MsgUserUpdateFailure = "Failed to save profile"
)

// AuthAPI is the part of the backend client session state needs.
type AuthAPI interface {
	Login(ctx context.Context, req apimodel.LoginRequest) (*apimodel.AuthResponse, error)
	Register(ctx context.Context, req apimodel.RegisterRequest) (*apimodel.AuthResponse, error)
	Revoke(ctx context.Context, refreshToken string) (*apimodel.MessageResponse, error)
	RevokeAll(ctx context.Context) (*apimodel.MessageResponse, error)
	TelegramWebLogin(ctx context.Context, token string) (*apimodel.AuthResponse, error)
	TelegramWebApp(ctx context.Context, initData string) (*apimodel.AuthResponse, error)
	GetUser(ctx context.Context, userID string) (*users.User, error)
}

// Clearer is anything holding per-session data.
type Clearer interface {
	Clear()
}

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	Authenticated bool
	Initialized   bool
	Loading       bool
	User          *users.User
	Error         string
}

type Manager struct {
	store       *token.Store
	api         AuthAPI
	coordinator *refresh.Coordinator
	logger      zerolog.Logger
	defaultTZ   string
	localTZ     string
	redirect    func()

	mu          sync.RWMutex
	accessToken string
	user        *users.User
	loading     bool
	errMsg      string
	initialized bool
	clearers    []Clearer
	subscribers map[int]func(Snapshot)
	nextSubID   int

	// pubMu orders deliveries so subscribers never see an older snapshot after a newer one.
	pubMu sync.Mutex
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDefaultTimeZone is applied to cached profiles that carry no time zone.
func WithDefaultTimeZone(tz string) Option {
	return func(m *Manager) {
		m.defaultTZ = tz
	}
}

// WithLocalTimeZone is sent on registration when the caller leaves timeZoneId empty.
func WithLocalTimeZone(tz string) Option {
	return func(m *Manager) {
		m.localTZ = tz
	}
}

// WithRedirectToLogin is called once each time an authenticated session expires.
func WithRedirectToLogin(fn func()) Option {
	return func(m *Manager) {
		m.redirect = fn
	}
}

func New(store *token.Store, authAPI AuthAPI, coordinator *refresh.Coordinator, options ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[sessions.New] store is required")
	}
	if authAPI == nil {
		return nil, errors.New("[sessions.New] auth api is required")
	}
	if coordinator == nil {
		return nil, errors.New("[sessions.New] coordinator is required")
	}

	m := &Manager{
		store:       store,
		api:         authAPI,
		coordinator: coordinator,
		logger:      log.Logger,
		defaultTZ:   users.DefaultTimeZone,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.localTZ == "" {
		m.localTZ = m.defaultTZ
	}
	coordinator.AddListener(m.onRenewed)
	return m, nil
}

// AddClearer registers c to be cleared on logout and expiry.
func (m *Manager) AddClearer(c Clearer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearers = append(m.clearers, c)
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		Authenticated: m.accessToken != "" && m.user != nil,
		Initialized:   m.initialized,
		Loading:       m.loading,
		Error:         m.errMsg,
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// Subscribe calls fn with a snapshot after every state change until the returned func is called.
// fn runs synchronously and must not call mutating Manager methods.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) publish() {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.RLock()
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().Authenticated
}

// UserID is empty when nobody is logged in.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

func (m *Manager) HasRefreshToken() bool {
	return m.store.HasRefreshToken()
}

// Initialize restores a persisted session. A partial record (token without user or the reverse) is purged.
func (m *Manager) Initialize() {
	c := m.store.Credentials()
	if c.Authenticated() {
		u := c.User.WithDefaults(m.defaultTZ)
		m.update(func() {
			m.accessToken = c.AccessToken
			m.user = &u
			m.initialized = true
		})
		m.logger.Debug().Str("user_id", u.ID).Msg("Session restored")
		return
	}

	if err := m.store.ClearAll(); err != nil {
		m.logger.Err(err).Msg("Failed to clear partial credentials")
	}
	m.update(func() {
		m.accessToken = ""
		m.user = nil
		m.initialized = true
	})
}

func (m *Manager) ClearError() {
	m.update(func() { m.errMsg = "" })
}

func (m *Manager) begin() {
	m.update(func() {
		m.loading = true
		m.errMsg = ""
	})
}

func (m *Manager) fail(err error, fallback string) error {
	msg := api.MessageOf(err, fallback)
	m.update(func() {
		m.loading = false
		m.errMsg = msg
	})
	return err
}

// CompleteLogin persists resp and makes it the active session. Every login channel ends here.
func (m *Manager) CompleteLogin(resp apimodel.AuthResponse) error {
	if resp.Token == "" {
		return errors.Wrapf(errors.ErrNotAuthenticated, "[Manager.CompleteLogin] empty token")
	}
	u := resp.User.WithDefaults(m.defaultTZ)
	creds := token.FromAuthResponse(resp)
	creds.User = &u

	if err := m.store.SaveCredentials(creds); err != nil {
		m.update(func() { m.loading = false })
		return errors.Wrapf(err, "[Manager.CompleteLogin] persist")
	}
	m.update(func() {
		m.accessToken = resp.Token
		m.user = &u
		m.loading = false
		m.errMsg = ""
		m.initialized = true
	})
	m.logger.Info().Str("user_id", u.ID).Msg("Logged in")
	return nil
}

func (m *Manager) Login(ctx context.Context, req apimodel.LoginRequest) error {
	m.begin()
	resp, err := m.api.Login(ctx, req)
	if err != nil {
		return m.fail(errors.Wrapf(err, "[Manager.Login]"), MsgLoginFailed)
	}
	return m.CompleteLogin(*resp)
}

// Register creates an account and logs in. An empty time zone is replaced by the local one.
func (m *Manager) Register(ctx context.Context, req apimodel.RegisterRequest) error {
	m.begin()
	if req.TimeZoneID == nil || *req.TimeZoneID == "" {
		tz := m.localTZ
		req.TimeZoneID = &tz
	}
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return m.fail(errors.Wrapf(err, "[Manager.Register]"), MsgRegisterFailed)
	}
	return m.CompleteLogin(*resp)
}

func (m *Manager) TelegramWebLogin(ctx context.Context, oneTimeToken string) error {
	m.begin()
	resp, err := m.api.TelegramWebLogin(ctx, oneTimeToken)
	if err != nil {
		return m.fail(errors.Wrapf(err, "[Manager.TelegramWebLogin]"), MsgTelegramLogin)
	}
	return m.CompleteLogin(*resp)
}

func (m *Manager) TelegramWebAppLogin(ctx context.Context, initData string) error {
	m.begin()
	resp, err := m.api.TelegramWebApp(ctx, initData)
	if err != nil {
		return m.fail(errors.Wrapf(err, "[Manager.TelegramWebAppLogin]"), MsgTelegramWebApp)
	}
	return m.CompleteLogin(*resp)
}

// Logout revokes this device's refresh token if it can and always clears local state.
func (m *Manager) Logout(ctx context.Context) {
	if rt := m.store.RefreshToken(); rt != "" {
		if _, err := m.api.Revoke(ctx, rt); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to revoke refresh token on server")
		}
	}
	m.clearSession()
	m.logger.Info().Msg("Logged out")
}

// LogoutEverywhere revokes every refresh token of the account. On failure nothing local changes.
func (m *Manager) LogoutEverywhere(ctx context.Context) error {
	m.begin()
	if _, err := m.api.RevokeAll(ctx); err != nil {
		return m.fail(errors.Wrapf(err, "[Manager.LogoutEverywhere]"), MsgLogoutAllFailed)
	}
	m.clearSession()
	m.update(func() { m.loading = false })
	m.logger.Info().Msg("Logged out of all devices")
	return nil
}

// RefreshToken renews the access token on demand. Failure ends the session.
func (m *Manager) RefreshToken(ctx context.Context) error {
	if !m.store.HasRefreshToken() {
		m.clearSession()
		return errors.ErrNoRefreshToken
	}
	if _, err := m.coordinator.Renew(ctx, ""); err != nil {
		if ctx.Err() == nil {
			m.clearSession()
		}
		return errors.Wrapf(err, "[Manager.RefreshToken]")
	}
	return nil
}

// UpdateUser replaces the cached profile, e.g. after PUT /users/{id}.
func (m *Manager) UpdateUser(u users.User) error {
	if err := m.store.SetUser(u); err != nil {
		return m.fail(errors.Wrapf(err, "[Manager.UpdateUser]"), MsgUserUpdateFailure)
	}
	m.update(func() { m.user = &u })
	return nil
}

// RefreshUser reloads the profile from the backend and caches it. A profile that arrives after
// the session ended, or for another account, is dropped.
func (m *Manager) RefreshUser(ctx context.Context) (*users.User, error) {
	userID := m.UserID()
	if userID == "" {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "[Manager.RefreshUser]")
	}
	fetched, err := m.api.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "[Manager.RefreshUser]")
	}
	u := fetched.WithDefaults(m.defaultTZ)

	var stale bool
	var storeErr error
	m.update(func() {
		if m.user == nil || m.user.ID != userID {
			stale = true
			return
		}
		if storeErr = m.store.SetUser(u); storeErr == nil {
			m.user = &u
		}
	})
	switch {
	case stale:
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "[Manager.RefreshUser] session ended")
	case storeErr != nil:
		return nil, errors.Wrapf(storeErr, "[Manager.RefreshUser] persist")
	}
	return &u, nil
}

// Expire ends the session after the backend rejected renewal. It is safe to call repeatedly:
// storage is purged every time, but the redirect fires only for the call that ended an active session.
func (m *Manager) Expire(reason error) {
	m.mu.Lock()
	active := m.accessToken != ""
	m.accessToken = ""
	m.user = nil
	if active {
		m.errMsg = MsgSessionExpired
	}
	m.mu.Unlock()

	m.purge()
	m.publish()
	if !active {
		return
	}
	m.logger.Warn().Err(reason).Msg("Session expired")
	if m.redirect != nil {
		m.redirect()
	}
}

func (m *Manager) clearSession() {
	m.purge()
	m.update(func() {
		m.accessToken = ""
		m.user = nil
	})
}

// purge removes the persisted record and empties every registered cache.
func (m *Manager) purge() {
	if err := m.store.ClearAll(); err != nil {
		m.logger.Err(err).Msg("Failed to clear credentials")
	}

	m.mu.RLock()
	clearers := append([]Clearer(nil), m.clearers...)
	m.mu.RUnlock()
	for _, c := range clearers {
		c.Clear()
	}
}

func (m *Manager) onRenewed(c token.Credentials) {
	m.update(func() {
		if m.user != nil {
			m.accessToken = c.AccessToken
		}
	})
}
