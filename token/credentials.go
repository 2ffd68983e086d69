package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/users"
	"golang.org/x/oauth2"
)

// Credentials is the record kept for an authenticated session.
type Credentials struct {
	AccessToken  string
	RefreshToken string     // empty when the backend did not issue one
	ExpiresAt    *time.Time // nil when unknown
	User         *users.User
}

// Authenticated reports whether both an access token and a user are present.
func (c Credentials) Authenticated() bool {
	return c.AccessToken != "" && c.User != nil
}

// OAuth2 converts the record for use with golang.org/x/oauth2 clients.
func (c Credentials) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
	}
	if c.ExpiresAt != nil {
		tok.Expiry = *c.ExpiresAt
	}
	return tok
}

// ExpiryFromJWT reads the exp claim of an access token without verifying its signature.
// Signature checks belong to the backend; the client only needs a renewal hint.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// FromAuthResponse builds a record from a login or refresh response. An unparseable expiry is dropped.
func FromAuthResponse(resp apimodel.AuthResponse) Credentials {
	c := Credentials{
		AccessToken: resp.Token,
		User:        &resp.User,
	}
	if resp.RefreshToken != nil {
		c.RefreshToken = *resp.RefreshToken
	}
	if resp.TokenExpires != nil && *resp.TokenExpires != "" {
		if exp, err := apimodel.ParseTimestamp(*resp.TokenExpires); err == nil {
			c.ExpiresAt = &exp
		}
	}
	return c
}
