package users

import (
	"time"
	_ "time/tzdata"
)

// RoleType is the account role reported by the backend
type RoleType string

const (
	RoleUser  RoleType = "User"
	RoleAdmin RoleType = "Admin"
)

// DefaultTimeZone is applied to profiles cached before the backend reported time zones.
const DefaultTimeZone = "Europe/Moscow"

// User is the denormalized profile cached alongside the access token.
type User struct {
	ID               string     `json:"id"`                         // Unique identifier (GUID)
	Name             string     `json:"name"`                       // Display name
	Email            string     `json:"email"`                      // Login email
	Role             RoleType   `json:"role"`                       // Account role
	TelegramUserID   *int64     `json:"telegramUserId,omitempty"`   // Telegram user ID, nil when not linked
	TelegramUsername *string    `json:"telegramUsername,omitempty"` // Telegram @username
	TimeZoneID       string     `json:"timeZoneId,omitempty"`       // IANA zone, e.g. "Europe/Moscow"
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// WithDefaults returns a copy with an empty time zone replaced by fallback (or DefaultTimeZone).
func (u User) WithDefaults(fallback string) User {
	if u.TimeZoneID == "" {
		if fallback == "" {
			fallback = DefaultTimeZone
		}
		u.TimeZoneID = fallback
	}
	return u
}

// IsTelegramLinked reports whether the account has a Telegram identity attached.
func (u *User) IsTelegramLinked() bool {
	return u != nil && u.TelegramUserID != nil && *u.TelegramUserID != 0
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Location resolves the profile time zone, falling back to UTC for unknown zones.
func (u *User) Location() *time.Location {
	if u == nil || u.TimeZoneID == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.TimeZoneID)
	if err != nil {
		return time.UTC
	}
	return loc
}
