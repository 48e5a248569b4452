package transport

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssuer(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := issuer.Issue("client-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	t.Run("roundtrip", func(t *testing.T) {
		sub, err := issuer.Verify(token)
		if err != nil || sub != "client-1" {
			t.Fatalf("expected client-1, got %q (%v)", sub, err)
		}
	})

	t.Run("otro secreto", func(t *testing.T) {
		other, _ := NewTokenIssuer("other", time.Hour)
		if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expirado", func(t *testing.T) {
		issuer.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
		defer func() { issuer.now = func() time.Time { return time.Now().UTC() } }()
		if _, err := issuer.Verify(token); !errors.Is(err, ErrExpiredToken) {
			t.Fatalf("expected ErrExpiredToken, got %v", err)
		}
	})

	t.Run("vacio", func(t *testing.T) {
		if _, err := issuer.Verify(" "); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
		if _, err := issuer.Issue(""); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for empty client id, got %v", err)
		}
	})
}

func TestTokenIssuer_RandomSecret(t *testing.T) {
	a, _ := NewTokenIssuer("", time.Hour)
	b, _ := NewTokenIssuer("", time.Hour)
	token, err := a.Issue("client-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Fatalf("random secrets must differ between issuers")
	}
}
