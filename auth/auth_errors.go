package auth

import (
	"github.com/jrsteele09/go-medassist-client/api"
	"github.com/jrsteele09/go-medassist-client/internal/errors"
)

// Backend error texts returned by /auth/telegram-webapp.
const (
	backendInvalidSignature = "Invalid signature"
	backendDataExpired      = "Data expired"
	backendUserNotLinked    = "User not linked to Telegram"
	backendUserNotLinkedRu  = "Пользователь не привязан к Telegram. Сначала зарегистрируйтесь через бота."
	backendInvalidInitData  = "Invalid initData"
)

// Texts shown to the user after a failed Mini-App login.
const (
	MsgSecurityError    = "Security check failed. Please restart the app."
	MsgWebAppExpired    = "Your session has expired. Close the app and open it again."
	MsgAccountNotFound  = "Account not found. Press /start in the bot to register."
	MsgInvalidAuthData  = "Invalid authorization data. Please restart the app."
	MsgAuthFailed       = "Authorization failed. Please try again later."
	MsgUnknownAuthError = "Unknown error"
)

// MapTelegramAuthError turns a Mini-App login failure into text a user can act on.
func MapTelegramAuthError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, errors.ErrInvalidInitData) {
		return MsgInvalidAuthData
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return MsgAuthFailed
	}
	switch apiErr.Message {
	case backendInvalidSignature:
		return MsgSecurityError
	case backendDataExpired:
		return MsgWebAppExpired
	case backendUserNotLinked, backendUserNotLinkedRu:
		return MsgAccountNotFound
	case backendInvalidInitData:
		return MsgInvalidAuthData
	case "":
		return MsgUnknownAuthError
	default:
		return apiErr.Message
	}
}
