package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/metrics"
	"go.uber.org/zap"
)

// CreateUserRequest is the flow-local admin user-creation input.
type CreateUserRequest struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// AdminDeps captures admin flow dependencies.
type AdminDeps struct {
	Common

	CustomerRole string

	GetUserByID  func(ctx context.Context, userID string) (UserRecord, error)
	HashPassword func(plaintext string) (string, error)
	NewUserID    func() string
	CreateUser   func(ctx context.Context, user UserRecord) error
}

// RunCreateUser lets an enrolled admin create an account.
func RunCreateUser(ctx context.Context, actorID string, req CreateUserRequest, deps AdminDeps) (*UserRecord, error) {
	deps.fill()
	if deps.GetUserByID == nil || deps.HashPassword == nil || deps.NewUserID == nil || deps.CreateUser == nil {
		return nil, deps.Errors.EngineNotReady
	}

	actor, err := deps.GetUserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return nil, deps.Errors.Forbidden
		}
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if actor.Role != deps.AdminRole {
		deps.EmitAudit(ctx, EventSuspiciousActivity, audit.SeverityHigh, false, actor.UserID, actor.Email, "", deps.Errors.Forbidden, func() map[string]string {
			return map[string]string{"reason": "non_admin_user_creation"}
		})
		return nil, deps.Errors.Forbidden
	}
	if NeedsEnrollment(actor, deps.AdminRole) {
		return nil, deps.Errors.EnrollmentRequired
	}

	email := NormalizeEmail(req.Email)
	if !ValidEmail(email) {
		return nil, fmt.Errorf("%w: email", deps.Errors.Validation)
	}
	if !ValidName(req.Name) {
		return nil, fmt.Errorf("%w: name", deps.Errors.Validation)
	}
	if reason := PasswordPolicyViolation(req.Password); reason != "" {
		return nil, fmt.Errorf("%w: password %s", deps.Errors.Validation, reason)
	}
	role := req.Role
	if role == "" {
		role = deps.CustomerRole
	}
	if role != deps.CustomerRole && role != deps.AdminRole {
		return nil, fmt.Errorf("%w: role", deps.Errors.Validation)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := UserRecord{
		UserID:       deps.NewUserID(),
		Email:        email,
		Name:         req.Name,
		Role:         role,
		PasswordHash: hash,
	}
	if err := deps.CreateUser(ctx, user); err != nil {
		if errors.Is(err, deps.Errors.AccountExists) {
			deps.EmitAudit(ctx, EventAdminAction, audit.SeverityMedium, false, actor.UserID, actor.Email, "", err, func() map[string]string {
				return map[string]string{"action": "create_user", "target_email": email}
			})
			return nil, err
		}
		deps.Logger.Error("user insert failed", zap.Error(err))
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}

	deps.MetricInc(metrics.MetricAdminUserCreated)
	deps.EmitAudit(ctx, EventAdminAction, audit.SeverityMedium, true, actor.UserID, actor.Email, "", nil, func() map[string]string {
		return map[string]string{
			"action":      "create_user",
			"target_id":   user.UserID,
			"target_role": role,
		}
	})
	user.PasswordHash = ""
	return &user, nil
}
