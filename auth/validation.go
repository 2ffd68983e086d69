package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
)

const (
	MaxEmailLength    = 200
	MinPasswordLength = 6
	MaxPasswordLength = 100
	MaxNameLength     = 200
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator checks login and registration input before it reaches the backend.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", errors.ErrInvalidEmail)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", errors.ErrInvalidEmail)
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return fmt.Errorf("%w: email cannot exceed %d characters", errors.ErrInvalidEmail, MaxEmailLength)
	}
	return nil
}

func (v *Validator) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", errors.ErrInvalidPassword)
	}
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", errors.ErrInvalidPassword, MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return fmt.Errorf("%w: password cannot exceed %d characters", errors.ErrInvalidPassword, MaxPasswordLength)
	}
	return nil
}

func (v *Validator) ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", errors.ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name cannot exceed %d characters", errors.ErrInvalidName, MaxNameLength)
	}
	return nil
}

// ValidateLogin only checks that both fields are present; the backend judges the credentials.
func (v *Validator) ValidateLogin(req apimodel.LoginRequest) error {
	if strings.TrimSpace(req.Email) == "" {
		return fmt.Errorf("%w: email is required", errors.ErrInvalidEmail)
	}
	if req.Password == "" {
		return fmt.Errorf("%w: password is required", errors.ErrInvalidPassword)
	}
	return nil
}

func (v *Validator) ValidateRegistration(req apimodel.RegisterRequest) error {
	if err := v.ValidateName(req.Name); err != nil {
		return err
	}
	if err := v.ValidateEmail(req.Email); err != nil {
		return err
	}
	return v.ValidatePassword(req.Password)
}
