package application

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest carries raw registration input. Normalization and
// validation happen inside Register, not at the transport edge.
type RegisterRequest struct {
	Email    string
	Name     string
	Phone    string
	Age      int
	Password string
}

type RegisterResponse struct {
	UserID       uuid.UUID
	Email        string
	Name         string
	RegisteredAt time.Time
}

type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResponse pairs the signed token with the server-side session it is
// bound to. Clients present the token; the session id rides in a cookie.
type LoginResponse struct {
	Token     string
	SessionID uuid.UUID
	UserID    uuid.UUID
	Email     string
	Name      string
	Role      string
	ExpiresAt time.Time
}

// VerifiedIdentity is the result of a successful request verification:
// claims that were checked against a live session.
type VerifiedIdentity struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	SessionID uuid.UUID
}

// RegistrantItem is the admin listing projection. It never carries the
// password hash.
type RegistrantItem struct {
	UserID       uuid.UUID
	Email        string
	Name         string
	Phone        string
	Age          int
	Role         string
	IsActive     bool
	RegisteredAt time.Time
}

type RegistrantPage struct {
	Items  []RegistrantItem
	Total  int64
	Limit  int
	Offset int
}

// Statuses recorded on login attempts.
const (
	attemptStatusSuccess = "SUCCESS"
	attemptStatusFailure = "FAILURE"
	attemptStatusLocked  = "LOCKED"
)
