package ports

import (
	"time"

	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	// DummyCompare burns the same work as a real comparison.
	// Login calls it when the user does not exist so response timing does
	// not reveal which accounts are registered.
	DummyCompare(password string)
}

type AuthClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	SessionID uuid.UUID `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
}

// CSRFGuard binds per-form tokens to a session id and a short expiry.
type CSRFGuard interface {
	Issue(sessionID uuid.UUID) (string, error)
	Validate(sessionID uuid.UUID, token string) error
}
