package fakebackend

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
	"github.com/jrsteele09/go-medassist-client/users"
	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateUser adds an account directly, bypassing /auth/register.
func (s *Server) CreateUser(name, email, password string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(name, email, password, nil)
}

func (s *Server) createUserLocked(name, email, password string, timeZoneID *string) (users.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if _, exists := s.byEmail[key]; exists {
		return users.User{}, errors.New("User with this email already exists")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return users.User{}, errors.Wrapf(err, "hash password")
	}

	tz := users.DefaultTimeZone
	if timeZoneID != nil && *timeZoneID != "" {
		tz = *timeZoneID
	}
	u := users.User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Role:       users.RoleUser,
		TimeZoneID: tz,
		CreatedAt:  NowTimeFunc().UTC(),
	}
	s.accounts[u.ID] = &account{user: u, passwordHash: hash}
	s.byEmail[key] = u.ID
	return u, nil
}

func (s *Server) userLocked(id string) (users.User, bool) {
	a, ok := s.accounts[id]
	if !ok {
		return users.User{}, false
	}
	return a.user, true
}

func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}
