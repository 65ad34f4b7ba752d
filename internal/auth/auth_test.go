package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerify_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Claims{UserID: 7, Nickname: "amy", ProfileURL: "https://cdn/x.png"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 7 || claims.Nickname != "amy" || claims.ProfileURL != "https://cdn/x.png" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerify_Failures(t *testing.T) {
	v := NewVerifier("test-secret")

	if _, err := v.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	// wrong secret
	other := NewVerifier("other-secret")
	token, err := other.Sign(Claims{UserID: 7}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	// expired
	expired, err := v.Sign(Claims{UserID: 7}, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_RejectsMissingSubject(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Claims{UserID: 0, Nickname: "ghost"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken without a user id, got %v", err)
	}
}
