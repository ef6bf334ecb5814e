package flows

import (
	"context"

	"github.com/MrEthical07/bankauth/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssueSession != nil && s.deps.Validate.Verify != nil
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) ConfirmLoginTwoFactor(ctx context.Context, pendingID, code string) (*LoginResult, error) {
	return RunConfirmLoginTwoFactor(ctx, pendingID, code, s.deps.Login)
}

func (s Service) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	return RunSetupTwoFactor(ctx, userID, s.deps.TwoFactor)
}

func (s Service) ConfirmTwoFactorSetup(ctx context.Context, userID, code string) error {
	return RunConfirmTwoFactorSetup(ctx, userID, code, s.deps.TwoFactor)
}

func (s Service) Refresh(ctx context.Context, raw string) (*SessionTokens, error) {
	return RunRefresh(ctx, raw, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, raw string) error {
	return RunLogout(ctx, raw, s.deps.Logout)
}

func (s Service) Validate(ctx context.Context, token string) (*jwt.Claims, error) {
	return RunValidate(ctx, token, s.deps.Validate)
}

func (s Service) CreateUser(ctx context.Context, actorID string, req CreateUserRequest) (*UserRecord, error) {
	return RunCreateUser(ctx, actorID, req, s.deps.Admin)
}
