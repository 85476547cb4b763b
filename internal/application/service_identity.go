package application

import (
	"context"
	"fmt"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// ListRegistrants returns a page of registrants newest-first. Only admins
// may call it; the check lives here so every transport gets it for free.
func (s *Service) ListRegistrants(ctx context.Context, caller VerifiedIdentity, limit, offset int) (RegistrantPage, error) {
	if caller.Role != domain.RoleAdmin {
		return RegistrantPage{}, fmt.Errorf("%w: admin role required", domain.ErrUnauthorized)
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return RegistrantPage{}, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return RegistrantPage{}, err
	}

	items := make([]RegistrantItem, 0, len(users))
	for _, u := range users {
		items = append(items, RegistrantItem{
			UserID:       u.UserID,
			Email:        u.Email,
			Name:         u.Name,
			Phone:        u.Phone,
			Age:          u.Age,
			Role:         u.Role,
			IsActive:     u.IsActive,
			RegisteredAt: u.CreatedAt,
		})
	}

	s.logger.Info("registrants listed",
		"operation", "list_registrants", "outcome", "success",
		"caller", caller.UserID, "count", len(items))

	return RegistrantPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// LoginHistory returns recent login attempts for the given user. Admins may
// query anyone; registrants only themselves.
func (s *Service) LoginHistory(ctx context.Context, caller VerifiedIdentity, userID uuid.UUID, limit, offset int) ([]domain.LoginAttempt, error) {
	if caller.Role != domain.RoleAdmin && caller.UserID != userID {
		return nil, fmt.Errorf("%w: cannot view another user's history", domain.ErrUnauthorized)
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.attempts.ListByUser(ctx, userID, limit, offset, nil)
}

// ActiveSessions reports the current live session count.
func (s *Service) ActiveSessions() int {
	return s.sessions.Len()
}

// IsRateLimited peeks at the named limiter class without consuming a slot.
func (s *Service) IsRateLimited(ip, class string) bool {
	return s.limiter.IsLimited(ip, class)
}

// RetryAfter reports the whole seconds until the ip's window for the class resets.
func (s *Service) RetryAfter(ip, class string) int {
	return s.limiter.RetryAfter(ip, class)
}

// IssueCSRF mints a form token bound to the caller's session.
func (s *Service) IssueCSRF(sessionID uuid.UUID) (string, error) {
	return s.csrf.Issue(sessionID)
}

// ValidateCSRF checks a form token against the caller's session. Every
// failure mode collapses to ErrCSRFInvalid.
func (s *Service) ValidateCSRF(sessionID uuid.UUID, token string) error {
	return s.csrf.Validate(sessionID, token)
}
