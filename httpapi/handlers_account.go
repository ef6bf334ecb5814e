package httpapi

import (
	"net/http"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/middleware"
)

// selfOnly returns the caller when userID names them. Two-factor enrollment
// is only ever performed on one's own account.
func (s *Server) selfOnly(r *http.Request, userID string) (*bankauth.AuthResult, error) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		return nil, bankauth.ErrUnauthorized
	}
	if auth.UserID != userID {
		return nil, bankauth.ErrForbidden
	}
	return auth, nil
}

// POST /2fa/setup
func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	var req twoFactorSetupRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.check(&req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.selfOnly(r, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	setup, err := s.svc.SetupTwoFactor(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorSetupResponse{
		ProvisioningURI: setup.ProvisioningURI,
		SecretEncoded:   setup.SecretEncoded,
		QRCodeDataURL:   setup.QRCodeDataURL,
	})
}

// POST /2fa/verify-setup
func (s *Server) handleTwoFactorVerifySetup(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.check(&req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.selfOnly(r, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.ConfirmTwoFactorSetup(r.Context(), req.UserID, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true})
}

// POST /admin/users
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		s.writeError(w, r, bankauth.ErrUnauthorized)
		return
	}

	var req createUserRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.check(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.svc.CreateUser(r.Context(), auth.UserID, bankauth.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     bankauth.Role(req.Role),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]userBody{"user": toUserBody(*user)})
}
