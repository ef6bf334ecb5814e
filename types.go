package bankauth

import (
	"context"
	"time"
)

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// User is the persisted account record.
//
// TwoFactorSecretEncrypted is nil until setup has been started; it holds the
// secretbox-sealed base32 TOTP secret, never the plaintext.
type User struct {
	ID                       string
	Email                    string
	PasswordHash             string
	Name                     string
	Role                     Role
	TwoFactorEnabled         bool
	TwoFactorSecretEncrypted *string
	CreatedAt                time.Time
	LastLogin                *time.Time
}

// CredentialStore is the user persistence the Engine depends on.
// Implementations return [ErrUserNotFound] for unknown users and
// [ErrAccountExists] when CreateUser hits the email uniqueness constraint.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetTwoFactorSecret(ctx context.Context, userID, sealedSecret string) error
	EnableTwoFactor(ctx context.Context, userID string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// PublicUser is the subset of User that may be returned to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// SessionTokens is everything handed to a client when a session is issued or rotated.
type SessionTokens struct {
	AccessToken        string
	AccessExpiresAt    time.Time
	RefreshToken       string
	RefreshExpiresAt   time.Time
	CSRFToken          string
	SessionID          string
	EnrollmentRequired bool
}

// LoginResult is returned by [Engine.Login] and [Engine.ConfirmLoginTwoFactor].
// Tokens is nil while RequiresTwoFactor is true.
type LoginResult struct {
	User               PublicUser
	RequiresTwoFactor  bool
	PendingID          string
	EnrollmentRequired bool
	Tokens             *SessionTokens
}

// TwoFactorSetup is returned by [Engine.SetupTwoFactor]. 2FA stays disabled
// until [Engine.ConfirmTwoFactorSetup] succeeds.
type TwoFactorSetup struct {
	ProvisioningURI string
	SecretEncoded   string
	QRCodeDataURL   string
}

// AuthResult is the identity resolved from a valid access token.
type AuthResult struct {
	UserID             string
	Email              string
	Role               Role
	SessionID          string
	EnrollmentRequired bool
	ExpiresAt          time.Time
}

// IsAdmin reports whether the caller holds the admin role.
func (a *AuthResult) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// CreateUserInput is the input for [Engine.CreateUser].
// Role defaults to [RoleCustomer].
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     Role
}

// HealthStatus reports backend reachability.
type HealthStatus struct {
	Redis    error
	Database error
}

// OK reports whether every checked backend answered.
func (h HealthStatus) OK() bool {
	return h.Redis == nil && h.Database == nil
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
