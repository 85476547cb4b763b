package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognized by the service. Registrants are created as RoleUser;
// the registrant listing endpoint requires RoleAdmin.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User is the canonical registrant identity aggregate.
// Lockout state lives on the user record because account lockout is
// identity-scoped, unlike IP rate limiting which is request-source-scoped.
type User struct {
	UserID         uuid.UUID
	Email          string
	Name           string
	Phone          string
	Age            int
	PasswordHash   string
	Role           string
	FailedAttempts int
	LockedUntil    *time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LockedAt reports whether the account lockout is still in force at now.
func (u User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Session is a server-side login record, authoritative over any token the
// client holds: a revoked session rejects a not-yet-expired token.
type Session struct {
	SessionID  uuid.UUID
	UserID     uuid.UUID
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// LoginAttempt records authentication outcomes for audit and lockout review.
type LoginAttempt struct {
	ID            int64
	UserID        *uuid.UUID
	AttemptAt     time.Time
	IPAddress     string
	Status        string
	FailureReason string
	UserAgent     string
}
