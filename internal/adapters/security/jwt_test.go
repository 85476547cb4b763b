package security

import (
	"errors"
	"testing"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
)

func newTestSigner(t *testing.T) *JWTSigner {
	t.Helper()
	signer, err := NewJWTSigner("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func TestJWTSignerRoundTrip(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	now := time.Now().UTC().Truncate(time.Second)
	claims := ports.AuthClaims{
		UserID:    uuid.New(),
		Email:     "jordan@example.com",
		Role:      domain.RoleUser,
		SessionID: uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(30 * time.Minute),
	}

	raw, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := signer.ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.UserID != claims.UserID || got.SessionID != claims.SessionID {
		t.Fatalf("claims mismatch: got %+v want %+v", got, claims)
	}
	if got.Email != claims.Email || got.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v want %+v", got, claims)
	}
	if !got.ExpiresAt.Equal(claims.ExpiresAt) {
		t.Fatalf("expiry mismatch: got %v want %v", got.ExpiresAt, claims.ExpiresAt)
	}
}

func TestJWTSignerRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	now := time.Now().UTC()
	raw, err := signer.Sign(ports.AuthClaims{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := signer.ParseAndValidate(raw); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTSignerRejectsForeignKey(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	other, err := NewJWTSigner("ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	now := time.Now().UTC()
	raw, err := other.Sign(ports.AuthClaims{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := signer.ParseAndValidate(raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestJWTSignerRejectsShortKey(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTSigner("short"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestJWTSignerRejectsGarbage(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	if _, err := signer.ParseAndValidate("not.a.token"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
