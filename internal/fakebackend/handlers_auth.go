package fakebackend

import (
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-medassist-client/apimodel"
)

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.LoginRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(req.Email))]
		if !ok || !CheckPasswordHash(req.Password, s.accounts[id].passwordHash) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		resp, err := s.issueLocked(s.accounts[id].user, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RegisterRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || len(req.Password) < 6 {
			writeError(w, http.StatusBadRequest, "Name, email and a password of at least 6 characters are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u, err := s.createUserLocked(req.Name, req.Email, req.Password, req.TimeZoneID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := s.issueLocked(u, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RefreshTokenRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		s.mu.Lock()
		s.refreshCalls++
		delay := s.refreshDelay
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		userID, ok := s.refreshTokens[req.RefreshToken]
		if s.failRefresh || !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		u, ok := s.userLocked(userID)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}

		rotate := !s.opts.OmitRefreshRotation
		if rotate {
			delete(s.refreshTokens, req.RefreshToken)
		}
		resp, err := s.issueLocked(u, rotate)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RevokeTokenRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		s.mu.Lock()
		_, ok := s.refreshTokens[req.RefreshToken]
		delete(s.refreshTokens, req.RefreshToken)
		s.mu.Unlock()

		if !ok {
			writeError(w, http.StatusBadRequest, "Token not found")
			return
		}
		writeJSON(w, http.StatusOK, apimodel.MessageResponse{Message: "Token revoked"})
	}
}

func (s *Server) RevokeAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.revokeUserRefreshTokensLocked(userIDFrom(r))
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, apimodel.MessageResponse{Message: "All tokens revoked"})
	}
}
