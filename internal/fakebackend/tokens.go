package fakebackend

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/utils"
	"github.com/jrsteele09/go-medassist-client/users"
)

// issueLocked creates an access token and, when rotate is set, a new refresh token.
func (s *Server) issueLocked(u users.User, rotate bool) (apimodel.AuthResponse, error) {
	now := NowTimeFunc()
	exp := now.Add(s.opts.AccessTTL)

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"role":  string(u.Role),
		"gen":   s.generation,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
		"jti":   uuid.NewString(),
	}).SignedString(s.signingKey)
	if err != nil {
		return apimodel.AuthResponse{}, err
	}

	resp := apimodel.AuthResponse{Token: access, User: u}
	if rotate {
		refresh := uuid.NewString()
		s.refreshTokens[refresh] = u.ID
		resp.RefreshToken = utils.Ptr(refresh)
	}
	if !s.opts.OmitTokenExpires {
		resp.TokenExpires = utils.Ptr(apimodel.FormatTimestamp(exp))
	}
	return resp, nil
}

func (s *Server) revokeUserRefreshTokensLocked(userID string) int {
	n := 0
	for tok, owner := range s.refreshTokens {
		if owner == userID {
			delete(s.refreshTokens, tok)
			n++
		}
	}
	return n
}
