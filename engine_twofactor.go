package bankauth

import "context"

// SetupTwoFactor generates a TOTP secret for userID, stores it sealed with
// AES-GCM and returns the provisioning material. 2FA stays disabled until
// [Engine.ConfirmTwoFactorSetup] accepts a code. Calling it again before
// confirmation replaces the pending secret.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	setup, err := e.flow.SetupTwoFactor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TwoFactorSetup{
		ProvisioningURI: setup.ProvisioningURI,
		SecretEncoded:   setup.SecretEncoded,
		QRCodeDataURL:   setup.QRCodeDataURL,
	}, nil
}

// ConfirmTwoFactorSetup enables 2FA once code matches the stored secret.
// Wrong codes count against a per-user budget; once it is spent the call
// returns [ErrTwoFactorRateLimited] until the cooldown passes.
func (e *Engine) ConfirmTwoFactorSetup(ctx context.Context, userID, code string) error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return e.flow.ConfirmTwoFactorSetup(ctx, userID, code)
}
