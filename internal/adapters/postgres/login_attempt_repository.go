package postgres

import (
	"context"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type loginAttemptRepository struct {
	db *gorm.DB
}

func (r *loginAttemptRepository) Insert(ctx context.Context, attempt domain.LoginAttempt) error {
	rec := loginAttemptModel{
		UserID:        attempt.UserID,
		AttemptAt:     attempt.AttemptAt,
		Status:        attempt.Status,
		FailureReason: attempt.FailureReason,
		UserAgent:     attempt.UserAgent,
	}
	if attempt.IPAddress != "" {
		ip := attempt.IPAddress
		rec.IPAddress = &ip
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return storageErr("insert login attempt", err)
	}
	return nil
}

func (r *loginAttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, since *time.Time) ([]domain.LoginAttempt, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("attempt_at DESC").
		Limit(limit).
		Offset(offset)
	if since != nil {
		query = query.Where("attempt_at >= ?", *since)
	}

	var recs []loginAttemptModel
	if err := query.Find(&recs).Error; err != nil {
		return nil, storageErr("list login attempts", err)
	}

	attempts := make([]domain.LoginAttempt, 0, len(recs))
	for _, rec := range recs {
		attempts = append(attempts, toDomainAttempt(rec))
	}
	return attempts, nil
}
