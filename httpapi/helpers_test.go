package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/refresh"
	"github.com/MrEthical07/bankauth/totp"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testPassword = "Secure1!pass"

type userStore struct {
	mu    sync.Mutex
	users map[string]*bankauth.User
}

func newUserStore() *userStore {
	return &userStore{users: map[string]*bankauth.User{}}
}

func (s *userStore) GetUserByEmail(_ context.Context, email string) (*bankauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, bankauth.ErrUserNotFound
}

func (s *userStore) GetUserByID(_ context.Context, id string) (*bankauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, bankauth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) CreateUser(_ context.Context, u *bankauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return bankauth.ErrAccountExists
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) update(id string, fn func(*bankauth.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return bankauth.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (s *userStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(u *bankauth.User) { u.PasswordHash = hash })
}

func (s *userStore) SetTwoFactorSecret(_ context.Context, id, sealed string) error {
	return s.update(id, func(u *bankauth.User) { u.TwoFactorSecretEncrypted = &sealed })
}

func (s *userStore) EnableTwoFactor(_ context.Context, id string) error {
	return s.update(id, func(u *bankauth.User) { u.TwoFactorEnabled = true })
}

func (s *userStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(u *bankauth.User) { u.LastLogin = &at })
}

func (s *userStore) seed(t *testing.T, id, email string, role bankauth.Role) {
	t.Helper()
	v, err := password.NewVerifier(password.Config{Cost: password.MinCost})
	require.NoError(t, err)
	hash, err := v.Hash(testPassword)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &bankauth.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Name:         "John Smith",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
}

type harness struct {
	t       *testing.T
	handler http.Handler
	users   *userStore
	mr      *miniredis.Miniredis
}

func newHarness(t *testing.T, tweaks ...func(*Options)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := bankauth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("j"), 32)
	cfg.Refresh.Secret = bytes.Repeat([]byte("r"), 32)
	cfg.TwoFactor.EncryptionKey = bytes.Repeat([]byte("k"), 32)
	cfg.Password.BcryptCost = password.MinCost

	users := newUserStore()
	engine, err := bankauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(users).
		WithRefreshStore(refresh.NewMemoryStore()).
		Build()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	opts := Options{
		Service:    engine,
		Cookie:     cfg.Cookie,
		CSRFHeader: cfg.CSRF.HeaderName,
		Registerer: reg,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &harness{t: t, handler: srv.Routes(), users: users, mr: mr}
}

type call struct {
	method  string
	path    string
	body    any
	cookies []*http.Cookie
	csrf    string
	remote  string
	headers map[string]string
}

func (h *harness) do(c call) *httptest.ResponseRecorder {
	h.t.Helper()

	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.RemoteAddr = "192.0.2.10:51000"
	if c.remote != "" {
		req.RemoteAddr = c.remote
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(email string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(call{method: http.MethodPost, path: "/login", body: map[string]string{"email": email, "password": testPassword}})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	g, err := totp.NewGenerator(totp.Config{Issuer: "SecureBank"})
	require.NoError(t, err)
	code, err := g.CodeAt(secret, time.Now())
	require.NoError(t, err)
	return code
}

// enroll runs the setup and verify endpoints for the session in cookies and
// returns the TOTP secret.
func (h *harness) enroll(userID string, cookies []*http.Cookie) string {
	h.t.Helper()
	csrf := cookieByName(cookies, "csrf_token").Value

	rec := h.do(call{method: http.MethodPost, path: "/2fa/setup", body: map[string]string{"userId": userID}, cookies: cookies, csrf: csrf})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	secret, _ := decode(h.t, rec)["secretEncoded"].(string)
	require.NotEmpty(h.t, secret)

	rec = h.do(call{
		method:  http.MethodPost,
		path:    "/2fa/verify-setup",
		body:    map[string]string{"userId": userID, "code": currentCode(h.t, secret)},
		cookies: cookies,
		csrf:    csrf,
	})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return secret
}
