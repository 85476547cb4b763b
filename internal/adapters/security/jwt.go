package security

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTSigner implements HS256 token signing/parsing for auth sessions.
// The key is held at adapter level so application code stays crypto-library agnostic.
type JWTSigner struct {
	key []byte
}

// NewJWTSigner builds a signer from a configured secret key.
func NewJWTSigner(key string) (*JWTSigner, error) {
	if len(key) < 32 {
		return nil, errors.New("jwt signing key must be at least 32 bytes")
	}
	return &JWTSigner{key: []byte(key)}, nil
}

// NewEphemeralJWTSigner generates a process-local random key. Restarting the
// process invalidates every outstanding token; callers log that consequence.
func NewEphemeralJWTSigner() (*JWTSigner, error) {
	key := make([]byte, 48)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &JWTSigner{key: key}, nil
}

type authJWTClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) Sign(claims ports.AuthClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, authJWTClaims{
		UserID:    claims.UserID.String(),
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	return token.SignedString(s.key)
}

func (s *JWTSigner) ParseAndValidate(raw string) (ports.AuthClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &authJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.AuthClaims{}, domain.ErrTokenExpired
		}
		return ports.AuthClaims{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*authJWTClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, domain.ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: parse user_id", domain.ErrTokenInvalid)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: parse session_id", domain.ErrTokenInvalid)
	}

	out := ports.AuthClaims{
		UserID:    userID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: sessionID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

var _ ports.TokenSigner = (*JWTSigner)(nil)
