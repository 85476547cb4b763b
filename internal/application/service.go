// Package application contains the authentication use cases. It depends only
// on ports and domain types; adapters are injected at bootstrap.
package application

import (
	"log/slog"
	"time"

	"github.com/bioapp/auth-service/internal/ports"
)

// Config carries the policy knobs the use cases need. Transport and storage
// configuration stays out of the application layer.
type Config struct {
	// MaxLoginAttempts is the consecutive-failure threshold that locks the
	// account. The attempt that reaches it is rejected as locked.
	MaxLoginAttempts int
	// LockoutDuration is how long an account stays locked after the
	// threshold is crossed.
	LockoutDuration time.Duration
	// TokenTTL bounds the signed token lifetime. Sessions keep their own
	// TTL and idle timeout inside the session store.
	TokenTTL time.Duration
}

// Dependencies lists every port the service needs. Grouping them in a struct
// keeps the constructor signature stable as the service grows.
type Dependencies struct {
	Users    ports.UserRepository
	Attempts ports.LoginAttemptRepository
	Sessions ports.SessionStore
	Limiter  ports.RateLimiter
	Hasher   ports.PasswordHasher
	Signer   ports.TokenSigner
	CSRF     ports.CSRFGuard
	Logger   *slog.Logger
}

// Service implements registration, login, session verification, and the
// admin-facing registrant listing.
type Service struct {
	cfg      Config
	users    ports.UserRepository
	attempts ports.LoginAttemptRepository
	sessions ports.SessionStore
	limiter  ports.RateLimiter
	hasher   ports.PasswordHasher
	signer   ports.TokenSigner
	csrf     ports.CSRFGuard
	logger   *slog.Logger

	// nowFn is swapped in tests to drive lockout and expiry deterministically.
	nowFn func() time.Time
}

func NewService(cfg Config, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * time.Minute
	}
	return &Service{
		cfg:      cfg,
		users:    deps.Users,
		attempts: deps.Attempts,
		sessions: deps.Sessions,
		limiter:  deps.Limiter,
		hasher:   deps.Hasher,
		signer:   deps.Signer,
		csrf:     deps.CSRF,
		logger:   logger,
		nowFn:    time.Now,
	}
}
