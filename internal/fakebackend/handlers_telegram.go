package fakebackend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/internal/utils"
)

const initDataMaxAge = 24 * time.Hour

func (s *Server) TelegramLoginInitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		t := &ticket{
			token:     randomToken(32),
			expiresAt: NowTimeFunc().Add(s.opts.TicketTTL),
		}
		s.tickets[t.token] = t
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, apimodel.TelegramLoginInitResponse{
			Token:            t.token,
			DeepLink:         fmt.Sprintf("https://t.me/%s?start=login_%s", s.opts.BotName, t.token),
			ExpiresInMinutes: int(s.opts.TicketTTL / time.Minute),
			PollURL:          "/api/auth/telegram-login-poll/" + t.token,
		})
	}
}

func (s *Server) TelegramLoginPollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := r.PathValue("token")

		s.mu.Lock()
		s.pollCalls++
		t, ok := s.tickets[tok]
		attempt := 0
		if ok {
			t.polls++
			attempt = t.polls
		}
		hook := s.pollHook
		s.mu.Unlock()

		if hook != nil {
			if status := hook(s, tok, attempt); status != 0 {
				writeError(w, status, "Injected failure")
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusOK, apimodel.TelegramLoginPollResponse{Status: apimodel.PollExpired})
			return
		}
		if t.userID != "" {
			u, _ := s.userLocked(t.userID)
			resp, err := s.issueLocked(u, true)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			delete(s.tickets, tok)
			writeJSON(w, http.StatusOK, apimodel.TelegramLoginPollResponse{
				Status:       apimodel.PollAuthorized,
				Token:        utils.Ptr(resp.Token),
				RefreshToken: resp.RefreshToken,
				TokenExpires: resp.TokenExpires,
				User:         &resp.User,
			})
			return
		}
		if t.expired || NowTimeFunc().After(t.expiresAt) {
			writeJSON(w, http.StatusOK, apimodel.TelegramLoginPollResponse{Status: apimodel.PollExpired})
			return
		}
		writeJSON(w, http.StatusOK, apimodel.TelegramLoginPollResponse{Status: apimodel.PollPending})
	}
}

func (s *Server) TelegramWebLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.TelegramWebLoginRequest
		if err := decode(r, &req); err != nil || req.Token == "" {
			writeError(w, http.StatusBadRequest, "Token is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID, ok := s.webLoginTokens[req.Token]
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		delete(s.webLoginTokens, req.Token)

		u, _ := s.userLocked(userID)
		resp, err := s.issueLocked(u, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) TelegramWebAppHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.TelegramWebAppRequest
		if err := decode(r, &req); err != nil || req.InitData == "" {
			writeError(w, http.StatusBadRequest, "Invalid initData")
			return
		}

		telegramID, status, msg := VerifyInitData(s.opts.BotToken, req.InitData, NowTimeFunc())
		if status != 0 {
			writeError(w, status, msg)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID, ok := s.telegramLinks[telegramID]
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not linked to Telegram")
			return
		}
		u, _ := s.userLocked(userID)
		resp, err := s.issueLocked(u, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// webAppSecret is HMAC-SHA256("WebAppData", botToken) as defined by the Telegram Mini-App contract.
func webAppSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n")
}

// SignInitData adds auth_date (if absent) and a valid hash to values and returns the encoded query.
func SignInitData(botToken string, values url.Values, authDate time.Time) string {
	signed := url.Values{}
	for k, v := range values {
		signed[k] = append([]string(nil), v...)
	}
	if signed.Get("auth_date") == "" {
		signed.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	}
	signed.Del("hash")

	mac := hmac.New(sha256.New, webAppSecret(botToken))
	mac.Write([]byte(dataCheckString(signed)))
	signed.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}

// VerifyInitData checks a Mini-App initData string. On failure it returns the HTTP status and
// the backend's error text; on success the status is 0 and the Telegram user id is returned.
func VerifyInitData(botToken, initData string, now time.Time) (int64, int, string) {
	values, err := url.ParseQuery(initData)
	if err != nil || values.Get("hash") == "" {
		return 0, http.StatusBadRequest, "Invalid initData"
	}

	mac := hmac.New(sha256.New, webAppSecret(botToken))
	mac.Write([]byte(dataCheckString(values)))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(values.Get("hash"))) {
		return 0, http.StatusUnauthorized, "Invalid signature"
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, http.StatusBadRequest, "Invalid initData"
	}
	if now.Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, http.StatusUnauthorized, "Data expired"
	}

	var tgUser struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &tgUser); err != nil || tgUser.ID == 0 {
		return 0, http.StatusBadRequest, "Invalid initData"
	}
	return tgUser.ID, 0, ""
}
