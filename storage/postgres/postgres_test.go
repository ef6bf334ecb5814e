package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/MrEthical07/bankauth/storage/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "password_hash", "name", "role", "two_factor_enabled", "two_factor_secret_encrypted", "created_at", "last_login"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestGetUserByEmail(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewStore(mock)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	secret := "ciphertext"

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("john@bank.com").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow("u-1", "john@bank.com", "hash", "John", "admin", true, &secret, created, nil))

		u, err := s.GetUserByEmail(ctx, "john@bank.com")
		require.NoError(t, err)
		assert.Equal(t, "u-1", u.ID)
		assert.Equal(t, bankauth.RoleAdmin, u.Role)
		assert.True(t, u.TwoFactorEnabled)
		require.NotNil(t, u.TwoFactorSecretEncrypted)
		assert.Equal(t, secret, *u.TwoFactorSecretEncrypted)
		assert.Nil(t, u.LastLogin)
		assert.Equal(t, created, u.CreatedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("nobody@bank.com").
			WillReturnError(pgx.ErrNoRows)

		u, err := s.GetUserByEmail(ctx, "nobody@bank.com")
		assert.Nil(t, u)
		assert.ErrorIs(t, err, bankauth.ErrUserNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("john@bank.com").
			WillReturnError(errors.New("db down"))

		_, err := s.GetUserByEmail(ctx, "john@bank.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, bankauth.ErrUserNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewStore(mock)
	last := time.Now().UTC()

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("u-2").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u-2", "jane@bank.com", "hash", "Jane", "customer", false, nil, last, &last))

	u, err := s.GetUserByID(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, bankauth.RoleCustomer, u.Role)
	assert.Nil(t, u.TwoFactorSecretEncrypted)
	require.NotNil(t, u.LastLogin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewStore(mock)
	ctx := context.Background()
	u := &bankauth.User{
		ID:           "u-3",
		Email:        "new@bank.com",
		PasswordHash: "hash",
		Name:         "New User",
		Role:         bankauth.RoleCustomer,
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(u.ID, u.Email, u.PasswordHash, u.Name, "customer", false, u.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, s.CreateUser(ctx, u))
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(u.ID, u.Email, u.PasswordHash, u.Name, "customer", false, u.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		assert.ErrorIs(t, s.CreateUser(ctx, u), bankauth.ErrAccountExists)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdates(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewStore(mock)
	ctx := context.Background()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("u-1", "newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET two_factor_secret_encrypted").
		WithArgs("u-1", "sealed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET two_factor_enabled = TRUE").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("u-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("missing", "newhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdatePasswordHash(ctx, "u-1", "newhash"))
	require.NoError(t, s.SetTwoFactorSecret(ctx, "u-1", "sealed"))
	require.NoError(t, s.EnableTwoFactor(ctx, "u-1"))
	require.NoError(t, s.TouchLastLogin(ctx, "u-1", at))
	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", "newhash"), bankauth.ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStoreInsertAndFind(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewRefreshStore(mock)
	ctx := context.Background()
	now := time.Now().UTC()
	tok := &refresh.Token{
		ID: "t-1", UserID: "u-1", SessionID: "s-1", Digest: "d-1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour), UserAgent: "ua", IP: "10.0.0.1",
	}

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(tok.ID, tok.UserID, tok.SessionID, tok.Digest, tok.CreatedAt, tok.ExpiresAt, tok.UserAgent, tok.IP).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Insert(ctx, tok))

	next := "t-2"
	mock.ExpectQuery("FROM refresh_tokens").
		WithArgs("d-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "session_id", "token_digest", "created_at", "expires_at", "revoked_at", "replaced_by_id", "user_agent", "ip_address"}).
			AddRow("t-1", "u-1", "s-1", "d-1", now, now.Add(time.Hour), &now, &next, "ua", "10.0.0.1"))

	got, err := s.FindByDigest(ctx, "d-1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.NotNil(t, got.ReplacedByID)
	assert.Equal(t, "t-2", *got.ReplacedByID)

	mock.ExpectQuery("FROM refresh_tokens").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = s.FindByDigest(ctx, "missing")
	assert.ErrorIs(t, err, refresh.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStoreConditionalRevoke(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewRefreshStore(mock)
	ctx := context.Background()
	at := time.Now().UTC()
	next := "t-2"

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs("t-1", at, &next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs("t-1", at, &next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.RevokeIfActive(ctx, "t-1", &next, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RevokeIfActive(ctx, "t-1", &next, at)
	require.NoError(t, err)
	assert.False(t, ok, "second revoke of the same row must lose")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStoreSessionAndPurge(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewRefreshStore(mock)
	ctx := context.Background()
	at := time.Now().UTC()

	mock.ExpectExec("WHERE session_id").
		WithArgs("s-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(at).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.RevokeSession(ctx, "s-1", at)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.PurgeExpired(ctx, at)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, postgres.Migrate(context.Background(), mock))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnError(errors.New("permission denied"))
	assert.Error(t, postgres.Migrate(context.Background(), mock))

	assert.Contains(t, postgres.Schema(), "users_email_key")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewStore(mock)

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectQuery("SELECT 1").
		WillReturnError(errors.New("connection refused"))
	assert.Error(t, s.Ping(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}
