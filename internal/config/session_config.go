package config

import "time"

type SessionConfig interface {
	GetTokenLookahead() time.Duration
}

type Session struct {
	TokenLookahead time.Duration `env:"TOKEN_LOOKAHEAD" env-default:"60s"`
}

var _ SessionConfig = Session{}

// GetTokenLookahead is how long before expiry an access token counts as expiring soon.
func (s Session) GetTokenLookahead() time.Duration {
	if s.TokenLookahead <= 0 {
		return 60 * time.Second
	}
	return s.TokenLookahead
}
