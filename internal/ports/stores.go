package ports

import (
	"github.com/bioapp/auth-service/internal/domain"
	"github.com/google/uuid"
)

// SessionStore is the authoritative in-process table of live sessions,
// independent of token validity, enabling server-side revocation.
type SessionStore interface {
	Create(userID uuid.UUID, ip, userAgent string) (domain.Session, error)
	// Get returns the session if present and not expired. Entries past
	// their absolute TTL or idle timeout are removed and reported absent.
	Get(sessionID uuid.UUID) (domain.Session, error)
	// Touch refreshes last-seen time, driving idle-timeout semantics
	// distinct from the absolute TTL.
	Touch(sessionID uuid.UUID) error
	Revoke(sessionID uuid.UUID) error
	// RevokeAllByUser removes every live session for the user and returns
	// how many were dropped. Login uses it to defeat session fixation.
	RevokeAllByUser(userID uuid.UUID) int
	Len() int
}

// Endpoint classes with independently configurable limits.
const (
	LimitClassAuth    = "auth"
	LimitClassGeneral = "general"
)

// RateLimiter bounds request rate per client key per endpoint class.
type RateLimiter interface {
	// Allow consumes one slot for the key within the current window and
	// returns domain.ErrRateLimited once the class limit is reached.
	// A rejected request consumes nothing and has no other side effects.
	Allow(key, class string) error
	// IsLimited peeks at the current window without consuming a slot.
	IsLimited(key, class string) bool
	// RetryAfter reports how long until the key's current window resets.
	RetryAfter(key, class string) int
}
