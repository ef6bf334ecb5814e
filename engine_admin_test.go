package bankauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdminLoginRequiresEnrollment(t *testing.T) {
	users := newMemoryUsers()
	seedUser(t, users, "a1", "admin@bank.test", RoleAdmin)
	engine, _ := newTestEngine(t, testConfig(), users)

	res, err := engine.Login(testCtx(), "admin@bank.test", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.EnrollmentRequired || res.Tokens == nil || !res.Tokens.EnrollmentRequired {
		t.Fatalf("expected enrollment-restricted session, got %+v", res)
	}
	auth, err := engine.Validate(context.Background(), res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !auth.EnrollmentRequired || !auth.IsAdmin() {
		t.Fatalf("expected admin claims flagged for enrollment, got %+v", auth)
	}

	_, err = engine.CreateUser(testCtx(), "a1", CreateUserInput{
		Email:    "bob@bank.test",
		Password: testPassword,
		Name:     "Bob Stone",
	})
	if !errors.Is(err, ErrEnrollmentRequired) {
		t.Fatalf("expected ErrEnrollmentRequired, got %v", err)
	}

	enrollTwoFactor(t, engine, "a1")
	res, err = engine.Login(testCtx(), "admin@bank.test", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.RequiresTwoFactor || res.EnrollmentRequired {
		t.Fatalf("enrolled admin should get a 2FA challenge, got %+v", res)
	}
}

func TestAdminCreateUser(t *testing.T) {
	users := newMemoryUsers()
	seedUser(t, users, "a1", "admin@bank.test", RoleAdmin)
	seedUser(t, users, "c1", "carol@bank.test", RoleCustomer)
	engine, _ := newTestEngine(t, testConfig(), users)
	enrollTwoFactor(t, engine, "a1")

	in := CreateUserInput{Email: "Bob@Bank.test", Password: testPassword, Name: "Bob Stone"}

	if _, err := engine.CreateUser(testCtx(), "c1", in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer must be forbidden, got %v", err)
	}

	created, err := engine.CreateUser(testCtx(), "a1", in)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.Email != "bob@bank.test" || created.Role != RoleCustomer || created.ID == "" {
		t.Fatalf("unexpected created user: %+v", created)
	}
	if _, err := engine.Login(testCtx(), "bob@bank.test", testPassword); err != nil {
		t.Fatalf("new user cannot log in: %v", err)
	}

	if _, err := engine.CreateUser(testCtx(), "a1", in); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	bad := in
	bad.Email = "eve@bank.test"
	bad.Password = "weak"
	if _, err := engine.CreateUser(testCtx(), "a1", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for weak password, got %v", err)
	}
	bad.Password = testPassword
	bad.Role = "teller"
	if _, err := engine.CreateUser(testCtx(), "a1", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
}

func TestSecurityEventsRecorded(t *testing.T) {
	users := newMemoryUsers()
	seedUser(t, users, "u1", "alice@bank.test", RoleCustomer)
	engine, _ := newTestEngine(t, testConfig(), users)

	if _, err := engine.Login(testCtx(), "alice@bank.test", "Wrong1!pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.Login(testCtx(), "alice@bank.test", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	var events []SecurityEvent
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		events, err = engine.RecentSecurityEvents(context.Background(), 10)
		if err != nil {
			t.Fatalf("RecentSecurityEvents failed: %v", err)
		}
		if len(events) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least two events, got %d", len(events))
	}

	if events[0].Type != EventLogin || !events[0].Success || events[0].UserID != "u1" {
		t.Fatalf("expected newest event to be the login, got %+v", events[0])
	}
	if events[0].IP != "203.0.113.7" || events[0].UserAgent != "bankauth-test" {
		t.Fatalf("expected request context on event, got %+v", events[0])
	}
	if events[1].Type != EventFailedLogin || events[1].Error != "invalid_credentials" {
		t.Fatalf("expected failed login event, got %+v", events[1])
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	if err := CheckPasswordPolicy(testPassword); err != nil {
		t.Fatalf("expected policy pass, got %v", err)
	}
	for _, pw := range []string{"Sh0rt!", "alllower1!", "NoDigits!!", "NoSpecial11", "Bad chars 1!"} {
		if err := CheckPasswordPolicy(pw); !errors.Is(err, ErrValidation) {
			t.Fatalf("%q: expected ErrValidation, got %v", pw, err)
		}
	}
}
