package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	rec := userModel{
		Email:        params.Email,
		Name:         params.Name,
		Phone:        params.Phone,
		Age:          params.Age,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		IsActive:     true,
		CreatedAt:    params.RegisteredAt,
		UpdatedAt:    params.RegisteredAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, domain.ErrDuplicateUser
		}
		return domain.User{}, storageErr("create user", err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, storageErr("get user by email", err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, storageErr("get user by id", err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) UpdateLockState(ctx context.Context, userID uuid.UUID, failedAttempts int, lockedUntil *time.Time, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"failed_attempts": failedAttempts,
			"locked_until":    lockedUntil,
			"updated_at":      updatedAt,
		})
	if res.Error != nil {
		return storageErr("update lock state", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	var recs []userModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, storageErr("list users", err)
	}

	users := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, toDomainUser(rec))
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Count(&count).Error; err != nil {
		return 0, storageErr("count users", err)
	}
	return count, nil
}

// storageErr folds driver failures into the storage-unavailable category so
// callers never branch on engine-specific errors.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
