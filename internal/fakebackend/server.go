// Package fakebackend is an in-process stand-in for the medication-assistant REST backend.
// It issues real signed JWTs and rotating refresh tokens, and exposes knobs tests use to
// expire tokens, fail renewals and drive the Telegram login flows.
package fakebackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	contentTypeJSON = "application/json"
	DefaultBotToken = "123456:test-bot-token"
	DefaultBotName  = "medassist_test_bot"
)

type Options struct {
	AccessTTL time.Duration // default 15 minutes
	TicketTTL time.Duration // default 5 minutes
	BotToken  string
	BotName   string

	// OmitRefreshRotation makes /auth/refresh keep the old refresh token and leave it out of the response.
	OmitRefreshRotation bool
	// OmitTokenExpires leaves tokenExpires out of every auth response.
	OmitTokenExpires bool
}

type account struct {
	user         users.User
	passwordHash string
}

type ticket struct {
	token     string
	expiresAt time.Time
	userID    string // set once the bot confirms
	expired   bool
	polls     int
}

// PollHook runs on every poll of ticket before it is answered. A non-zero status is sent instead of the normal answer.
type PollHook func(s *Server, ticketToken string, attempt int) int

type Server struct {
	*httptest.Server
	mux        *http.ServeMux
	routes     []string
	opts       Options
	signingKey []byte

	mu             sync.Mutex
	accounts       map[string]*account
	byEmail        map[string]string
	refreshTokens  map[string]string // refresh token -> user id
	generation     int
	tickets        map[string]*ticket
	webLoginTokens map[string]string // one-time token -> user id
	telegramLinks  map[int64]string
	medications    map[string][]apimodel.Medication
	intakes        map[string][]apimodel.Intake
	reminders      map[string][]apimodel.Reminder

	refreshCalls int
	pollCalls    int
	failRefresh  bool
	refreshDelay time.Duration
	pollHook     PollHook
}

// New starts a server on a loopback port. Close it when done.
func New(opts Options) *Server {
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.TicketTTL == 0 {
		opts.TicketTTL = 5 * time.Minute
	}
	if opts.BotToken == "" {
		opts.BotToken = DefaultBotToken
	}
	if opts.BotName == "" {
		opts.BotName = DefaultBotName
	}

	s := &Server{
		mux:            http.NewServeMux(),
		opts:           opts,
		signingKey:     []byte(randomToken(32)),
		accounts:       make(map[string]*account),
		byEmail:        make(map[string]string),
		refreshTokens:  make(map[string]string),
		tickets:        make(map[string]*ticket),
		webLoginTokens: make(map[string]string),
		telegramLinks:  make(map[int64]string),
		medications:    make(map[string][]apimodel.Medication),
		intakes:        make(map[string][]apimodel.Intake),
		reminders:      make(map[string][]apimodel.Reminder),
	}
	s.initRoutes()
	s.Server = httptest.NewServer(s.mux)
	return s
}

// APIURL is the base URL a client should be configured with.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

func (s *Server) BotToken() string {
	return s.opts.BotToken
}

func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

type ctxKey string

const ctxUserID ctxKey = "user_id"

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserID).(string)
	return id
}

// RequireBearer rejects requests without a current access token.
func (s *Server) RequireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxUserID, userID)))
	}
}

// RequireOwner is RequireBearer plus a check that {userId} is the caller.
func (s *Server) RequireOwner(next http.HandlerFunc) http.HandlerFunc {
	return s.RequireBearer(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("userId") != userIDFrom(r) {
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
		next(w, r)
	})
}

func (s *Server) authenticate(r *http.Request) (string, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", false
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(NowTimeFunc))
	if err != nil {
		return "", false
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	gen, _ := claims["gen"].(float64)

	s.mu.Lock()
	defer s.mu.Unlock()
	if int(gen) < s.generation {
		return "", false
	}
	if _, ok := s.accounts[sub]; !ok {
		return "", false
	}
	return sub, true
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apimodel.ErrorResponse{Error: message})
}
