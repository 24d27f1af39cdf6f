package utils

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "token-test-secret"

func TestSessionToken(t *testing.T) {
	now := time.Now()
	token, claim, err := NewSessionToken(testSecret, 7, time.Hour, now)
	if err != nil {
		t.Fatalf("new session token: %v", err)
	}

	parsed, err := ParseSessionToken(testSecret, token, now.Add(59*time.Minute))
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if parsed.ID != 7 || parsed.Id != claim.Id {
		t.Fatalf("unexpected claim %+v", parsed)
	}

	if _, err := ParseSessionToken(testSecret, token, now.Add(2*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := ParseSessionToken("another-secret", token, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := ParseSessionToken(testSecret, "not.a.token", now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestTokenSubjectsDoNotMix(t *testing.T) {
	now := time.Now()
	reset, err := NewResetToken(testSecret, 3, "$2a$hash", time.Hour, now)
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	if _, err := ParseSessionToken(testSecret, reset, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected reset token to be refused as a session, got %v", err)
	}

	session, _, err := NewSessionToken(testSecret, 3, time.Hour, now)
	if err != nil {
		t.Fatalf("new session token: %v", err)
	}
	if _, err := ParseResetToken(testSecret, session, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected session token to be refused as a reset link, got %v", err)
	}
}

func TestResetTokenFingerprint(t *testing.T) {
	now := time.Now()
	token, err := NewResetToken(testSecret, 3, "$2a$old", time.Minute, now)
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	claim, err := ParseResetToken(testSecret, token, now)
	if err != nil {
		t.Fatalf("parse reset token: %v", err)
	}
	if claim.Fingerprint != PasswordFingerprint("$2a$old") {
		t.Fatalf("fingerprint does not match the issuing hash")
	}
	if claim.Fingerprint == PasswordFingerprint("$2a$new") {
		t.Fatalf("fingerprint should change with the hash")
	}
	if _, err := ParseResetToken(testSecret, token, now.Add(2*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
