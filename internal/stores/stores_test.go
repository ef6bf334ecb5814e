package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func savePending(t *testing.T, s *PendingLoginStore, id string) {
	t.Helper()
	err := s.Save(context.Background(), id, &PendingLogin{
		UserID:    "u1",
		Email:     "john@bank.com",
		ExpiresAt: time.Now().Add(5 * time.Minute).Unix(),
	}, 5*time.Minute)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestPendingLoginSaveGetConsume(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewPendingLoginStore(rdb, "")
	ctx := context.Background()
	savePending(t, s, "c1")

	rec, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.UserID != "u1" || rec.Email != "john@bank.com" || rec.Attempts != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}

	ok, err := s.Consume(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("expected first consume to win: %v %v", ok, err)
	}
	ok, err = s.Consume(ctx, "c1")
	if err != nil || ok {
		t.Fatalf("expected second consume to lose: %v %v", ok, err)
	}
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, ErrPendingLoginNotFound) {
		t.Fatalf("expected not found after consume, got %v", err)
	}
}

func TestPendingLoginRecordFailureExhausts(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewPendingLoginStore(rdb, "")
	ctx := context.Background()
	savePending(t, s, "c1")

	for i := 1; i < 3; i++ {
		exceeded, err := s.RecordFailure(ctx, "c1", 3)
		if err != nil || exceeded {
			t.Fatalf("attempt %d: exceeded=%v err=%v", i, exceeded, err)
		}
	}
	rec, err := s.Get(ctx, "c1")
	if err != nil || rec.Attempts != 2 {
		t.Fatalf("expected 2 attempts recorded, got %+v %v", rec, err)
	}

	exceeded, err := s.RecordFailure(ctx, "c1", 3)
	if err != nil || !exceeded {
		t.Fatalf("expected third failure to exceed: %v %v", exceeded, err)
	}
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, ErrPendingLoginNotFound) {
		t.Fatalf("expected record deleted after exceed, got %v", err)
	}
	if _, err := s.RecordFailure(ctx, "c1", 3); !errors.Is(err, ErrPendingLoginNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPendingLoginExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewPendingLoginStore(rdb, "")
	savePending(t, s, "c1")

	mr.FastForward(6 * time.Minute)
	if _, err := s.Get(context.Background(), "c1"); !errors.Is(err, ErrPendingLoginNotFound) {
		t.Fatalf("expected not found after ttl, got %v", err)
	}
}

func TestPendingLoginLogicalExpiry(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewPendingLoginStore(rdb, "")
	savePending(t, s, "c1")
	s.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	if _, err := s.Get(context.Background(), "c1"); !errors.Is(err, ErrPendingLoginExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestPendingLoginBackendDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewPendingLoginStore(rdb, "")
	mr.Close()

	if _, err := s.Get(context.Background(), "c1"); !errors.Is(err, ErrPendingLoginBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestPendingLoginDecodeRejectsGarbage(t *testing.T) {
	if _, err := decodePendingLogin([]byte{9, 0, 0}); err == nil {
		t.Fatal("expected unknown version to fail")
	}
	if _, err := decodePendingLogin([]byte{pendingLoginRecordVersion1, 0}); err == nil {
		t.Fatal("expected truncated record to fail")
	}
}

func TestCSRFStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewCSRFStore(rdb, "")
	ctx := context.Background()

	if err := s.Put(ctx, "sid", "tok-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := s.Verify(ctx, "sid", "tok-1"); err != nil || !ok {
		t.Fatalf("expected match: %v %v", ok, err)
	}
	if ok, err := s.Verify(ctx, "sid", "tok-2"); err != nil || ok {
		t.Fatalf("expected mismatch: %v %v", ok, err)
	}
	if ok, err := s.Verify(ctx, "sid", ""); err != nil || ok {
		t.Fatalf("expected empty token to fail: %v %v", ok, err)
	}
	if err := s.Delete(ctx, "sid"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Verify(ctx, "sid", "tok-1"); !errors.Is(err, ErrCSRFNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCSRFStoreKeyPrefixAndBackendErrors(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	if err := NewCSRFStore(rdb, "").Put(ctx, "sid", "tok", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("bcsrf:sid") {
		t.Fatal("expected default prefix bcsrf")
	}
	if err := NewCSRFStore(rdb, "app").Put(ctx, "sid", "tok", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("app:sid") {
		t.Fatal("expected custom prefix")
	}

	mr.Close()
	s := NewCSRFStore(rdb, "")
	if err := s.Put(ctx, "sid", "tok", time.Hour); !errors.Is(err, ErrCSRFBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if _, err := s.Verify(ctx, "sid", "tok"); !errors.Is(err, ErrCSRFBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
