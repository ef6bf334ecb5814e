package bankauth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/MrEthical07/bankauth/totp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "Secure1!pass"

type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]string
	reads   int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:    map[string]*User{},
		byEmail: map[string]string{},
	}
}

func (m *memoryUsers) put(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[strings.ToLower(u.Email)] = u.ID
}

func (m *memoryUsers) get(id string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	u, ok := m.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[strings.ToLower(u.Email)]; ok {
		return ErrAccountExists
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (m *memoryUsers) update(userID string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *memoryUsers) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return m.update(userID, func(u *User) { u.PasswordHash = hash })
}

func (m *memoryUsers) SetTwoFactorSecret(_ context.Context, userID, sealed string) error {
	return m.update(userID, func(u *User) { u.TwoFactorSecretEncrypted = &sealed })
}

func (m *memoryUsers) EnableTwoFactor(_ context.Context, userID string) error {
	return m.update(userID, func(u *User) { u.TwoFactorEnabled = true })
}

func (m *memoryUsers) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	return m.update(userID, func(u *User) { u.LastLogin = &at })
}

func (m *memoryUsers) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("j"), 32)
	cfg.Refresh.Secret = bytes.Repeat([]byte("r"), 32)
	cfg.TwoFactor.EncryptionKey = bytes.Repeat([]byte("k"), 32)
	cfg.Password.BcryptCost = password.MinCost
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, users CredentialStore) (*Engine, *redis.Client) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(users).
		WithRefreshStore(refresh.NewMemoryStore()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, rdb
}

func seedUser(t *testing.T, users *memoryUsers, id, email string, role Role) *User {
	t.Helper()

	v, err := password.NewVerifier(password.Config{Cost: password.MinCost})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	hash, err := v.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	u := &User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	users.put(u)
	return u
}

func testCtx() context.Context {
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	return WithUserAgent(ctx, "bankauth-test")
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()

	g, err := totp.NewGenerator(totp.Config{Issuer: "SecureBank"})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	code, err := g.CodeAt(secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	return code
}

// wrongCode returns a well-formed code that differs from every code
// accepted in the current skew window.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()

	g, err := totp.NewGenerator(totp.Config{Issuer: "SecureBank"})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	now := time.Now()
	valid := map[string]bool{}
	for _, off := range []time.Duration{-30 * time.Second, 0, 30 * time.Second, 60 * time.Second} {
		code, err := g.CodeAt(secret, now.Add(off))
		if err != nil {
			t.Fatalf("CodeAt failed: %v", err)
		}
		valid[code] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333", "444444", "555555"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no invalid code found")
	return ""
}

// enrollTwoFactor runs setup and confirmation for userID and returns the
// plaintext secret.
func enrollTwoFactor(t *testing.T, engine *Engine, userID string) string {
	t.Helper()

	setup, err := engine.SetupTwoFactor(testCtx(), userID)
	if err != nil {
		t.Fatalf("SetupTwoFactor failed: %v", err)
	}
	if err := engine.ConfirmTwoFactorSetup(testCtx(), userID, currentCode(t, setup.SecretEncoded)); err != nil {
		t.Fatalf("ConfirmTwoFactorSetup failed: %v", err)
	}
	return setup.SecretEncoded
}
