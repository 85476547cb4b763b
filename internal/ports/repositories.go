package ports

import (
	"context"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/google/uuid"
)

// CreateUserParams captures validated registration inputs.
// The repository owns id generation and timestamps so creation stays atomic.
type CreateUserParams struct {
	Email        string
	Name         string
	Phone        string
	Age          int
	PasswordHash string
	Role         string
	RegisteredAt time.Time
}

// UserRepository defines persistence operations for registrant identities.
// The application core does not assume a specific storage engine behind it.
type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	// UpdateLockState persists the failed-attempt counter and lockout deadline.
	// It is the only mutation the login path performs on the user record.
	UpdateLockState(ctx context.Context, userID uuid.UUID, failedAttempts int, lockedUntil *time.Time, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// LoginAttemptRepository stores login outcomes used by audit and lockout review.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, since *time.Time) ([]domain.LoginAttempt, error)
}
