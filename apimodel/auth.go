package apimodel

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-medassist-client/users"
)

// AuthResponse is returned by every endpoint that establishes or renews a session:
// /auth/login, /auth/register, /auth/refresh, /auth/telegram-web-login and /auth/telegram-webapp.
type AuthResponse struct {
	// Token is the short-lived access token (JWT).
	// Usage: "Authorization: Bearer <token>" on every non-auth endpoint.
	Token string `json:"token"`

	// RefreshToken rotates on every /auth/refresh call. Older backends omit it.
	RefreshToken *string `json:"refreshToken,omitempty"`

	// TokenExpires is the absolute expiry of Token as an ISO 8601 timestamp.
	TokenExpires *string `json:"tokenExpires,omitempty"`

	User users.User `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	TimeZoneID *string `json:"timeZoneId,omitempty"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RevokeTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body the backend sends with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TelegramWebLoginRequest carries the one-time token from a bot deep link (32 chars, base64url).
type TelegramWebLoginRequest struct {
	Token string `json:"token"`
}

// TelegramWebAppRequest carries the raw, signed Mini-App initData query string.
type TelegramWebAppRequest struct {
	InitData string `json:"initData"`
}

type TelegramLoginInitResponse struct {
	Token            string `json:"token"`
	DeepLink         string `json:"deepLink"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
	PollURL          string `json:"pollUrl"`
}

type PollStatus string

const (
	PollPending    PollStatus = "pending"
	PollAuthorized PollStatus = "authorized"
	PollExpired    PollStatus = "expired"
)

type TelegramLoginPollResponse struct {
	Status       PollStatus  `json:"status"`
	Token        *string     `json:"token,omitempty"`
	RefreshToken *string     `json:"refreshToken,omitempty"`
	TokenExpires *string     `json:"tokenExpires,omitempty"`
	User         *users.User `json:"user,omitempty"`
}

// AuthResponse extracts the credential record from an authorized poll result.
// ok is false unless the status is authorized and both token and user are present.
func (p *TelegramLoginPollResponse) AuthResponse() (AuthResponse, bool) {
	if p == nil || p.Status != PollAuthorized || p.Token == nil || *p.Token == "" || p.User == nil {
		return AuthResponse{}, false
	}
	return AuthResponse{
		Token:        *p.Token,
		RefreshToken: p.RefreshToken,
		TokenExpires: p.TokenExpires,
		User:         *p.User,
	}, true
}

type TelegramLinkTokenResponse struct {
	Token            string `json:"token"`
	DeepLink         string `json:"deepLink"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

// ParseTimestamp accepts RFC 3339 timestamps and the zone-less ISO form some backends emit (read as UTC).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}

// FormatTimestamp is the inverse of ParseTimestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
