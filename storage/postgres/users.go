package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, name, role, two_factor_enabled, two_factor_secret_encrypted, created_at, last_login`

// Store is the Postgres credential store.
type Store struct {
	db DB
}

// NewStore wraps db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

var (
	_ bankauth.CredentialStore = (*Store)(nil)
	_ bankauth.Pinger          = (*Store)(nil)
)

// GetUserByEmail returns bankauth.ErrUserNotFound when no row matches.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*bankauth.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
	return scanUser(row)
}

// GetUserByID returns bankauth.ErrUserNotFound when no row matches.
func (s *Store) GetUserByID(ctx context.Context, id string) (*bankauth.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
	return scanUser(row)
}

// CreateUser inserts u. A duplicate email maps to bankauth.ErrAccountExists.
func (s *Store) CreateUser(ctx context.Context, u *bankauth.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, two_factor_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), u.TwoFactorEnabled, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return bankauth.ErrAccountExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
}

// SetTwoFactorSecret stores the encrypted secret without enabling 2FA.
func (s *Store) SetTwoFactorSecret(ctx context.Context, userID, encrypted string) error {
	return s.execOne(ctx, `UPDATE users SET two_factor_secret_encrypted = $2 WHERE id = $1`, userID, encrypted)
}

// EnableTwoFactor flips two_factor_enabled once a secret is present.
func (s *Store) EnableTwoFactor(ctx context.Context, userID string) error {
	return s.execOne(ctx, `UPDATE users SET two_factor_enabled = TRUE WHERE id = $1 AND two_factor_secret_encrypted IS NOT NULL`, userID)
}

// TouchLastLogin stamps last_login.
func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return s.execOne(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, userID, at)
}

// Ping runs a trivial query so health checks cover the pool.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Store) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bankauth.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*bankauth.User, error) {
	var (
		u    bankauth.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role,
		&u.TwoFactorEnabled, &u.TwoFactorSecretEncrypted, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = bankauth.Role(role)
	return &u, nil
}
