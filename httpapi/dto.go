package httpapi

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	Success            bool     `json:"success"`
	User               userBody `json:"user"`
	RequiresTwoFactor  bool     `json:"requiresTwoFactor"`
	PendingUserID      string   `json:"pendingUserId,omitempty"`
	EnrollmentRequired bool     `json:"enrollmentRequired,omitempty"`
	CSRFToken          string   `json:"csrfToken,omitempty"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type twoFactorChallengeRequest struct {
	PendingUserID string `json:"pendingUserId" validate:"required,bankid"`
	Code          string `json:"code" validate:"required,max=16"`
}

type twoFactorSetupRequest struct {
	UserID string `json:"userId" validate:"required,bankid"`
}

type twoFactorVerifyRequest struct {
	UserID string `json:"userId" validate:"required,bankid"`
	Code   string `json:"code" validate:"required,max=16"`
}

type twoFactorSetupResponse struct {
	ProvisioningURI string `json:"provisioningUri"`
	SecretEncoded   string `json:"secretEncoded"`
	QRCodeDataURL   string `json:"qrCodeDataUrl"`
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=50"`
	Role     string `json:"role" validate:"omitempty,oneof=customer admin"`
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	CSRFToken string `json:"csrfToken,omitempty"`
}

type meResponse struct {
	UserID             string `json:"userId"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	SessionID          string `json:"sessionId"`
	EnrollmentRequired bool   `json:"enrollmentRequired"`
	ExpiresAt          int64  `json:"expiresAt"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bankid", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs DTO validation and names the first failing field.
func (s *Server) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return validationError(verrs[0].Field() + " failed " + verrs[0].Tag())
	}
	return validationError("invalid body")
}
