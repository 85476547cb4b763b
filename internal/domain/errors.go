package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	// This supports brute-force mitigation and a predictable user-facing response.
	ErrAccountLocked = errors.New("account locked")
	// ErrDuplicateUser is returned when registration collides with an existing email.
	ErrDuplicateUser  = errors.New("user already exists")
	ErrSessionRevoked = errors.New("session revoked")
	ErrSessionExpired = errors.New("session expired")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrRateLimited    = errors.New("rate limited")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	// ErrCSRFInvalid covers every CSRF rejection: wrong session, expired,
	// malformed, or replayed. Validation never falls back to permissive.
	ErrCSRFInvalid = errors.New("csrf token invalid")
	// ErrStorageUnavailable marks backing-store failures as a distinct category
	// so transports can render a generic error without leaking internals.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
