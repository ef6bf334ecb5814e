package bankauth

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyCSRF(t *testing.T) {
	users := newMemoryUsers()
	seedUser(t, users, "u1", "alice@bank.test", RoleCustomer)
	engine, _ := newTestEngine(t, testConfig(), users)
	tokens := loginTokens(t, engine, "alice@bank.test")

	auth, err := engine.Validate(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if err := engine.VerifyCSRF(testCtx(), auth, tokens.CSRFToken); err != nil {
		t.Fatalf("VerifyCSRF failed: %v", err)
	}
	if err := engine.VerifyCSRF(testCtx(), auth, ""); !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("expected ErrCSRFMismatch for missing header, got %v", err)
	}
	if err := engine.VerifyCSRF(testCtx(), auth, tokens.CSRFToken+"x"); !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("expected ErrCSRFMismatch, got %v", err)
	}
	if HTTPStatus(KindOf(ErrCSRFMismatch)) != 403 {
		t.Fatal("expected CSRF mismatch to map to 403")
	}
	if got := engine.MetricsSnapshot().Counters[MetricCSRFRejected]; got != 2 {
		t.Fatalf("expected two rejections, got %d", got)
	}

	other := &AuthResult{UserID: "u1", SessionID: "some-other-session"}
	if err := engine.VerifyCSRF(testCtx(), other, tokens.CSRFToken); !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("token must be bound to its session, got %v", err)
	}
	if err := engine.VerifyCSRF(testCtx(), nil, tokens.CSRFToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without a session, got %v", err)
	}
}

func TestIssueCSRFReplacesToken(t *testing.T) {
	users := newMemoryUsers()
	seedUser(t, users, "u1", "alice@bank.test", RoleCustomer)
	engine, _ := newTestEngine(t, testConfig(), users)
	tokens := loginTokens(t, engine, "alice@bank.test")

	auth, err := engine.Validate(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	fresh, err := engine.IssueCSRF(testCtx(), auth.SessionID)
	if err != nil {
		t.Fatalf("IssueCSRF failed: %v", err)
	}
	if fresh == tokens.CSRFToken {
		t.Fatal("expected a new token")
	}
	if err := engine.VerifyCSRF(testCtx(), auth, tokens.CSRFToken); !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("old token must stop working, got %v", err)
	}
	if err := engine.VerifyCSRF(testCtx(), auth, fresh); err != nil {
		t.Fatalf("VerifyCSRF failed: %v", err)
	}
}
