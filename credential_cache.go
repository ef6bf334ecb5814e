package bankauth

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CachedCredentialStore serves user lookups from a short-lived in-process
// cache. Every write through it drops the affected entries.
//
// Only lookups are cached; the wrapped store still sees every write. A user
// changed by another process is stale here for at most the TTL.
type CachedCredentialStore struct {
	next CredentialStore
	c    *gocache.Cache
	// Concurrent misses for the same key share one backing read.
	sf singleflight.Group
}

// NewCachedCredentialStore wraps next with a cache holding users for ttl.
func NewCachedCredentialStore(next CredentialStore, ttl time.Duration) *CachedCredentialStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedCredentialStore{next: next, c: gocache.New(ttl, time.Minute)}
}

func cacheKeyID(id string) string       { return "id:" + id }
func cacheKeyEmail(email string) string { return "email:" + strings.ToLower(email) }

func (s *CachedCredentialStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	key := cacheKeyEmail(email)
	if v, ok := s.c.Get(key); ok {
		return copyUser(v.(*User)), nil
	}
	return s.load(key, func() (*User, error) { return s.next.GetUserByEmail(ctx, email) })
}

func (s *CachedCredentialStore) GetUserByID(ctx context.Context, userID string) (*User, error) {
	key := cacheKeyID(userID)
	if v, ok := s.c.Get(key); ok {
		return copyUser(v.(*User)), nil
	}
	return s.load(key, func() (*User, error) { return s.next.GetUserByID(ctx, userID) })
}

func (s *CachedCredentialStore) load(key string, fetch func() (*User, error)) (*User, error) {
	v, err, _ := s.sf.Do(key, func() (any, error) {
		u, err := fetch()
		if err != nil {
			return nil, err
		}
		s.store(u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return copyUser(v.(*User)), nil
}

func (s *CachedCredentialStore) CreateUser(ctx context.Context, u *User) error {
	if err := s.next.CreateUser(ctx, u); err != nil {
		return err
	}
	s.Invalidate(u.ID, u.Email)
	return nil
}

func (s *CachedCredentialStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	defer s.invalidateID(userID)
	return s.next.UpdatePasswordHash(ctx, userID, hash)
}

func (s *CachedCredentialStore) SetTwoFactorSecret(ctx context.Context, userID, sealed string) error {
	defer s.invalidateID(userID)
	return s.next.SetTwoFactorSecret(ctx, userID, sealed)
}

func (s *CachedCredentialStore) EnableTwoFactor(ctx context.Context, userID string) error {
	defer s.invalidateID(userID)
	return s.next.EnableTwoFactor(ctx, userID)
}

func (s *CachedCredentialStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	defer s.invalidateID(userID)
	return s.next.TouchLastLogin(ctx, userID, at)
}

// Ping forwards to the wrapped store when it implements [Pinger].
func (s *CachedCredentialStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Invalidate drops both cache entries for a user.
func (s *CachedCredentialStore) Invalidate(userID, email string) {
	if userID != "" {
		s.c.Delete(cacheKeyID(userID))
	}
	if email != "" {
		s.c.Delete(cacheKeyEmail(email))
	}
}

// Len reports the number of cached entries, expired ones included.
func (s *CachedCredentialStore) Len() int {
	return s.c.ItemCount()
}

func (s *CachedCredentialStore) store(u *User) {
	if u == nil {
		return
	}
	cp := copyUser(u)
	s.c.SetDefault(cacheKeyID(u.ID), cp)
	s.c.SetDefault(cacheKeyEmail(u.Email), cp)
}

// invalidateID drops the id entry and, when still cached, the matching
// email entry.
func (s *CachedCredentialStore) invalidateID(userID string) {
	if v, ok := s.c.Get(cacheKeyID(userID)); ok {
		s.c.Delete(cacheKeyEmail(v.(*User).Email))
	}
	s.c.Delete(cacheKeyID(userID))
}

func copyUser(u *User) *User {
	cp := *u
	if u.TwoFactorSecretEncrypted != nil {
		s := *u.TwoFactorSecretEncrypted
		cp.TwoFactorSecretEncrypted = &s
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}
