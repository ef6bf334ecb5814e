package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestLedger(t *testing.T) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	l, err := NewLedger(store, Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewLedger error: %v", err)
	}
	return l, store
}

func TestNewLedgerValidation(t *testing.T) {
	if _, err := NewLedger(nil, Config{Secret: testSecret}); err == nil {
		t.Fatal("expected nil store to be rejected")
	}
	if _, err := NewLedger(NewMemoryStore(), Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewLedger(NewMemoryStore(), Config{Secret: testSecret, TTL: time.Second}); err == nil {
		t.Fatal("expected tiny TTL to be rejected")
	}
	l, err := NewLedger(NewMemoryStore(), Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewLedger error: %v", err)
	}
	if l.TTL() != DefaultTTL {
		t.Fatalf("expected default TTL, got %v", l.TTL())
	}
}

func TestDigestIsKeyedAndStable(t *testing.T) {
	l, _ := newTestLedger(t)
	other, err := NewLedger(NewMemoryStore(), Config{Secret: []byte("fedcba9876543210fedcba9876543210")})
	if err != nil {
		t.Fatalf("NewLedger error: %v", err)
	}

	if l.Digest("abc") != l.Digest("abc") {
		t.Fatal("expected stable digest")
	}
	if len(l.Digest("abc")) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(l.Digest("abc")))
	}
	if l.Digest("abc") == other.Digest("abc") {
		t.Fatal("expected digest to depend on the secret")
	}
}

func TestPersistStoresDigestOnly(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	issued, err := l.Persist(ctx, Params{UserID: "u1", UserAgent: "ua", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	if len(issued.Raw) != 86 {
		t.Fatalf("expected 86-char raw token, got %d", len(issued.Raw))
	}
	if issued.Token.Digest == issued.Raw || issued.Token.Digest != l.Digest(issued.Raw) {
		t.Fatal("expected stored digest to be the HMAC of the raw token")
	}
	if issued.Token.SessionID == "" {
		t.Fatal("expected a new session id")
	}
	if got := issued.Token.ExpiresAt.Sub(issued.Token.CreatedAt); got != DefaultTTL {
		t.Fatalf("expected TTL %v, got %v", DefaultTTL, got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one row, got %d", store.Len())
	}

	if _, err := l.Persist(ctx, Params{}); err == nil {
		t.Fatal("expected missing user id to be rejected")
	}
}

func TestFindActive(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	tok, err := l.FindActive(ctx, issued.Raw)
	if err != nil {
		t.Fatalf("FindActive error: %v", err)
	}
	if tok.ID != issued.Token.ID {
		t.Fatalf("expected %s, got %s", issued.Token.ID, tok.ID)
	}

	for _, raw := range []string{"", "not base64 !!", "AAAA"} {
		if _, err := l.FindActive(ctx, raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", raw, err)
		}
	}

	if err := l.Revoke(ctx, tok.ID, nil); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if _, err := l.FindActive(ctx, issued.Raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected revoked token to be not found, got %v", err)
	}
	if err := l.Revoke(ctx, tok.ID, nil); !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
}

func TestFindActiveExpired(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	base := time.Now()
	l.now = func() time.Time { return base }

	issued, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	l.now = func() time.Time { return base.Add(DefaultTTL) }
	if _, err := l.FindActive(ctx, issued.Raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired token to be not found, got %v", err)
	}
	if _, err := l.Rotate(ctx, issued.Raw, Params{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired token rotation to fail, got %v", err)
	}
}

func TestRotateLinksChain(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	rot, err := l.Rotate(ctx, first.Raw, Params{UserAgent: "ua2", IP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if rot.Next.Raw == first.Raw {
		t.Fatal("expected a new raw token")
	}
	if rot.Next.Token.SessionID != first.Token.SessionID {
		t.Fatal("expected rotation to keep the session id")
	}
	if rot.Next.Token.UserAgent != "ua2" || rot.Next.Token.IP != "10.0.0.2" {
		t.Fatalf("expected request metadata on the successor, got %+v", rot.Next.Token)
	}

	if _, err := l.FindActive(ctx, first.Raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected previous token inactive, got %v", err)
	}
	prev, err := l.store.FindByDigest(ctx, first.Token.Digest)
	if err != nil {
		t.Fatalf("FindByDigest error: %v", err)
	}
	if prev.ReplacedByID == nil || *prev.ReplacedByID != rot.Next.Token.ID {
		t.Fatalf("expected replaced_by to link the successor, got %v", prev.ReplacedByID)
	}
	if _, err := l.FindActive(ctx, rot.Next.Raw); err != nil {
		t.Fatalf("expected successor active, got %v", err)
	}
}

func TestRotateReuseRevokesChain(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	rot, err := l.Rotate(ctx, first.Raw, Params{})
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}

	if _, err := l.Rotate(ctx, first.Raw, Params{}); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}
	if _, err := l.FindActive(ctx, rot.Next.Raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected successor revoked after reuse, got %v", err)
	}
}

func TestRotateRevokedWithoutSuccessorIsNotFound(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	if err := l.Revoke(ctx, issued.Token.ID, nil); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if _, err := l.Rotate(ctx, issued.Raw, Params{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after logout, got %v", err)
	}
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		success int64
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.Rotate(ctx, issued.Raw, Params{}); err == nil {
				atomic.AddInt64(&success, 1)
			} else if !errors.Is(err, ErrReuseDetected) {
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", success)
	}
}

func TestRevokeSession(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	a, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	b, err := l.Persist(ctx, Params{UserID: "u1", SessionID: a.Token.SessionID})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	other, err := l.Persist(ctx, Params{UserID: "u1"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	n, err := l.RevokeSession(ctx, a.Token.SessionID)
	if err != nil {
		t.Fatalf("RevokeSession error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}
	for _, raw := range []string{a.Raw, b.Raw} {
		if _, err := l.FindActive(ctx, raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected chain revoked, got %v", err)
		}
	}
	if _, err := l.FindActive(ctx, other.Raw); err != nil {
		t.Fatalf("expected other session untouched, got %v", err)
	}
}

func TestSweeperPurgesExpired(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	base := time.Now()
	l.now = func() time.Time { return base }

	if _, err := l.Persist(ctx, Params{UserID: "u1"}); err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	l.now = func() time.Time { return base.Add(DefaultTTL / 2) }
	fresh, err := l.Persist(ctx, Params{UserID: "u2"})
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	var purged int64
	s := NewSweeper(l, time.Minute, zaptest.NewLogger(t), func(n int64) { purged += n })

	l.now = func() time.Time { return base.Add(DefaultTTL + time.Second) }
	n, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if n != 1 || purged != 1 {
		t.Fatalf("expected one purge, got n=%d purged=%d", n, purged)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one remaining row, got %d", store.Len())
	}
	if _, err := l.FindActive(ctx, fresh.Raw); err != nil {
		t.Fatalf("expected fresh token kept, got %v", err)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	l, _ := newTestLedger(t)
	s := NewSweeper(l, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
