package httpapi

import (
	"net/http"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/internal/logger"
	"github.com/MrEthical07/bankauth/middleware"
	"go.uber.org/zap"
)

func toUserBody(u bankauth.PublicUser) userBody {
	return userBody{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}

// POST /login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.check(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := loginResponse{
		Success:            true,
		User:               toUserBody(res.User),
		RequiresTwoFactor:  res.RequiresTwoFactor,
		PendingUserID:      res.PendingID,
		EnrollmentRequired: res.EnrollmentRequired,
	}
	if res.Tokens != nil {
		s.setSessionCookies(w, res.Tokens)
		resp.CSRFToken = res.Tokens.CSRFToken
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /2fa/challenge completes a login that stopped at the second factor.
func (s *Server) handleTwoFactorChallenge(w http.ResponseWriter, r *http.Request) {
	var req twoFactorChallengeRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.check(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.ConfirmLoginTwoFactor(r.Context(), req.PendingUserID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Tokens == nil {
		s.writeError(w, r, bankauth.ErrUnauthorized)
		return
	}

	s.setSessionCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, CSRFToken: res.Tokens.CSRFToken})
}

// POST /refresh rotates the refresh cookie. Failures leave cookies alone.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := cookieValue(r, s.cookies.RefreshName)
	if raw == "" {
		s.writeError(w, r, bankauth.ErrRefreshInvalid)
		return
	}

	tokens, err := s.svc.Refresh(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookies(w, tokens)
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, CSRFToken: tokens.CSRFToken})
}

// POST /logout always succeeds and clears every session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := cookieValue(r, s.cookies.RefreshName); raw != "" {
		if err := s.svc.Logout(r.Context(), raw); err != nil {
			logger.From(r.Context()).Warn("logout revoke failed", zap.Error(err))
		}
	}
	s.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, sessionResponse{Success: true})
}

// GET /me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		s.writeError(w, r, bankauth.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:             auth.UserID,
		Email:              auth.Email,
		Role:               string(auth.Role),
		SessionID:          auth.SessionID,
		EnrollmentRequired: auth.EnrollmentRequired,
		ExpiresAt:          auth.ExpiresAt.Unix(),
	})
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.svc.Health(r.Context())
	body := map[string]string{"status": "ok", "redis": "up", "database": "up"}
	if status.Redis != nil {
		body["redis"] = "down"
	}
	if status.Database != nil {
		body["database"] = "down"
	}
	if !status.OK() {
		body["status"] = "unavailable"
		logger.From(r.Context()).Warn("health check failed", zap.NamedError("redis", status.Redis), zap.NamedError("database", status.Database))
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
