package bankauth

import (
	"context"
	"fmt"

	internalflows "github.com/MrEthical07/bankauth/internal/flows"
)

// CreateUser lets the admin actorID create an account. The actor must hold
// [RoleAdmin] and have finished 2FA enrollment. Role defaults to
// [RoleCustomer].
func (e *Engine) CreateUser(ctx context.Context, actorID string, in CreateUserInput) (*PublicUser, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	if in.Role != "" && !in.Role.Valid() {
		return nil, ErrValidation
	}

	created, err := e.flow.CreateUser(ctx, actorID, internalflows.CreateUserRequest{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     string(in.Role),
	})
	if err != nil {
		return nil, err
	}
	out := toPublicUser(*created)
	return &out, nil
}

// CheckPasswordPolicy reports ErrValidation, with the failing rule, when
// pw is not acceptable for a new account.
func CheckPasswordPolicy(pw string) error {
	if reason := internalflows.PasswordPolicyViolation(pw); reason != "" {
		return fmt.Errorf("%w: password %s", ErrValidation, reason)
	}
	return nil
}
