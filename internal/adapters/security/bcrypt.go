package security

import (
	"fmt"

	"github.com/bioapp/auth-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// dummyDigest is a real bcrypt digest of an unguessable throwaway value.
// Comparing against it costs the same as a genuine verification.
const dummyDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// BcryptHasher implements password hashing via bcrypt.
// Cost is configurable so security/performance can be tuned by environment.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt-based hasher with default fallback cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (h *BcryptHasher) DummyCompare(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(password))
}
