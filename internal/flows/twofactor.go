package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bankauth/internal/audit"
	"github.com/MrEthical07/bankauth/internal/metrics"
	"go.uber.org/zap"
)

// TwoFactorKey is a freshly generated TOTP secret with its enrollment artifacts.
type TwoFactorKey struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
}

// TwoFactorSetup is returned to the user starting enrollment.
type TwoFactorSetup struct {
	ProvisioningURI string
	SecretEncoded   string
	QRCodeDataURL   string
}

// TwoFactorDeps captures enrollment dependencies.
type TwoFactorDeps struct {
	Common

	GetUserByID   func(ctx context.Context, userID string) (UserRecord, error)
	GenerateKey   func(account string) (TwoFactorKey, error)
	EncryptSecret func(secret string) (string, error)
	DecryptSecret func(sealed string) (string, error)
	ValidateCode  func(secret, code string) (bool, error)
	SetSecret     func(ctx context.Context, userID, sealed string) error
	Enable        func(ctx context.Context, userID string) error

	// CheckAttempts returns Errors.TwoFactorRateLimited once the per-user budget is spent.
	CheckAttempts func(ctx context.Context, userID string) error
	// RecordAttemptFailure returns Errors.TwoFactorRateLimited when this failure spent the budget.
	RecordAttemptFailure func(ctx context.Context, userID string) error
	ResetAttempts        func(ctx context.Context, userID string) error
}

// RunSetupTwoFactor generates and stores an encrypted secret for userID.
// 2FA stays disabled until RunConfirmTwoFactorSetup succeeds.
func RunSetupTwoFactor(ctx context.Context, userID string, deps TwoFactorDeps) (*TwoFactorSetup, error) {
	deps.fill()
	if deps.GetUserByID == nil || deps.GenerateKey == nil || deps.EncryptSecret == nil || deps.SetSecret == nil {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := loadUser(ctx, userID, deps.GetUserByID, deps.Common)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, deps.Errors.TwoFactorAlreadyEnabled
	}

	key, err := deps.GenerateKey(user.Email)
	if err != nil {
		deps.Logger.Error("totp key generation failed", zap.Error(err))
		return nil, err
	}
	sealed, err := deps.EncryptSecret(key.Secret)
	if err != nil {
		deps.Logger.Error("totp secret encryption failed", zap.Error(err))
		return nil, err
	}
	if err := deps.SetSecret(ctx, user.UserID, sealed); err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return nil, err
		}
		return nil, wrapBackend(deps.Errors.BackendUnavailable, err)
	}

	deps.MetricInc(metrics.MetricTwoFactorSetup)
	deps.EmitAudit(ctx, EventTwoFactorSetup, audit.SeverityLow, true, user.UserID, user.Email, "", nil, nil)

	return &TwoFactorSetup{
		ProvisioningURI: key.ProvisioningURI,
		SecretEncoded:   key.Secret,
		QRCodeDataURL:   key.QRCodeDataURL,
	}, nil
}

// RunConfirmTwoFactorSetup enables 2FA once the user proves possession of the secret.
func RunConfirmTwoFactorSetup(ctx context.Context, userID, code string, deps TwoFactorDeps) error {
	deps.fill()
	if deps.GetUserByID == nil || deps.DecryptSecret == nil || deps.ValidateCode == nil || deps.Enable == nil {
		return deps.Errors.EngineNotReady
	}
	if !ValidCode(code) {
		return deps.Errors.TwoFactorInvalidCode
	}

	if deps.CheckAttempts != nil {
		if err := deps.CheckAttempts(ctx, userID); err != nil {
			if errors.Is(err, deps.Errors.TwoFactorRateLimited) {
				deps.MetricInc(metrics.MetricTwoFactorRateLimited)
				deps.EmitAudit(ctx, EventRateLimited, audit.SeverityMedium, false, userID, "", "", err, func() map[string]string {
					return map[string]string{"scope": "two_factor_setup"}
				})
				return err
			}
			return wrapBackend(deps.Errors.BackendUnavailable, err)
		}
	}

	user, err := loadUser(ctx, userID, deps.GetUserByID, deps.Common)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return deps.Errors.TwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil || *user.TwoFactorSecret == "" {
		return deps.Errors.TwoFactorNotInitialized
	}

	secret, err := deps.DecryptSecret(*user.TwoFactorSecret)
	if err != nil {
		deps.Logger.Error("two-factor secret decrypt failed", zap.String("user_id", user.UserID))
		deps.EmitAudit(ctx, EventTwoFactorFailed, audit.SeverityHigh, false, user.UserID, user.Email, "", deps.Errors.TwoFactorDecrypt, func() map[string]string {
			return map[string]string{"reason": "decrypt_failed", "scope": "setup"}
		})
		return deps.Errors.TwoFactorDecrypt
	}

	ok, err := deps.ValidateCode(secret, code)
	if err != nil || !ok {
		deps.MetricInc(metrics.MetricTwoFactorFailure)
		deps.EmitAudit(ctx, EventTwoFactorFailed, audit.SeverityMedium, false, user.UserID, user.Email, "", deps.Errors.TwoFactorInvalidCode, func() map[string]string {
			return map[string]string{"scope": "setup"}
		})
		if deps.RecordAttemptFailure != nil {
			if ferr := deps.RecordAttemptFailure(ctx, user.UserID); ferr != nil {
				if errors.Is(ferr, deps.Errors.TwoFactorRateLimited) {
					deps.MetricInc(metrics.MetricTwoFactorRateLimited)
					return ferr
				}
				deps.Logger.Warn("two-factor attempt count failed", zap.Error(ferr))
			}
		}
		return deps.Errors.TwoFactorInvalidCode
	}

	if err := deps.Enable(ctx, user.UserID); err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return err
		}
		return wrapBackend(deps.Errors.BackendUnavailable, err)
	}
	if deps.ResetAttempts != nil {
		if err := deps.ResetAttempts(ctx, user.UserID); err != nil {
			deps.Logger.Warn("two-factor attempt reset failed", zap.Error(err))
		}
	}

	deps.MetricInc(metrics.MetricTwoFactorEnabled)
	deps.EmitAudit(ctx, EventTwoFactorEnabled, audit.SeverityMedium, true, user.UserID, user.Email, "", nil, nil)
	return nil
}

func loadUser(
	ctx context.Context,
	userID string,
	get func(context.Context, string) (UserRecord, error),
	c Common,
) (UserRecord, error) {
	if !ValidID(userID) {
		return UserRecord{}, c.Errors.Validation
	}
	user, err := get(ctx, userID)
	if err != nil {
		if errors.Is(err, c.Errors.UserNotFound) {
			return UserRecord{}, err
		}
		c.Logger.Error("user lookup failed", zap.Error(err))
		return UserRecord{}, wrapBackend(c.Errors.BackendUnavailable, err)
	}
	return user, nil
}
