package postgres

import (
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/google/uuid"
)

type userModel struct {
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string     `gorm:"column:email"`
	Name           string     `gorm:"column:name"`
	Phone          string     `gorm:"column:phone"`
	Age            int        `gorm:"column:age"`
	PasswordHash   string     `gorm:"column:password_hash"`
	Role           string     `gorm:"column:role"`
	FailedAttempts int        `gorm:"column:failed_attempts"`
	LockedUntil    *time.Time `gorm:"column:locked_until"`
	IsActive       bool       `gorm:"column:is_active"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type loginAttemptModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	UserID        *uuid.UUID `gorm:"column:user_id"`
	AttemptAt     time.Time  `gorm:"column:attempt_at"`
	IPAddress     *string    `gorm:"column:ip_address"`
	Status        string     `gorm:"column:status"`
	FailureReason string     `gorm:"column:failure_reason"`
	UserAgent     string     `gorm:"column:user_agent"`
}

func (loginAttemptModel) TableName() string { return "login_attempts" }

func toDomainUser(rec userModel) domain.User {
	return domain.User{
		UserID:         rec.UserID,
		Email:          rec.Email,
		Name:           rec.Name,
		Phone:          rec.Phone,
		Age:            rec.Age,
		PasswordHash:   rec.PasswordHash,
		Role:           rec.Role,
		FailedAttempts: rec.FailedAttempts,
		LockedUntil:    rec.LockedUntil,
		IsActive:       rec.IsActive,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func toDomainAttempt(rec loginAttemptModel) domain.LoginAttempt {
	attempt := domain.LoginAttempt{
		ID:            rec.ID,
		UserID:        rec.UserID,
		AttemptAt:     rec.AttemptAt,
		Status:        rec.Status,
		FailureReason: rec.FailureReason,
		UserAgent:     rec.UserAgent,
	}
	if rec.IPAddress != nil {
		attempt.IPAddress = *rec.IPAddress
	}
	return attempt
}
