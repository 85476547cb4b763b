package postgres

import (
	"github.com/bioapp/auth-service/internal/ports"
	"gorm.io/gorm"
)

// Repositories bundles all Postgres-backed adapters behind port interfaces.
type Repositories struct {
	Users         ports.UserRepository
	LoginAttempts ports.LoginAttemptRepository
}

// NewRepositories constructs every repository against one shared pool.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         &userRepository{db: db},
		LoginAttempts: &loginAttemptRepository{db: db},
	}
}
