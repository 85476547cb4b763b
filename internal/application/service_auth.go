package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
)

// Register validates and normalizes the input, hashes the password, and
// persists the registrant. Duplicate emails surface as ErrDuplicateUser.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	name, err := domain.ValidateName(req.Name)
	if err != nil {
		return RegisterResponse{}, err
	}
	phone, err := domain.NormalizePhone(req.Phone)
	if err != nil {
		return RegisterResponse{}, err
	}
	if err := domain.ValidateAge(req.Age); err != nil {
		return RegisterResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, ports.CreateUserParams{
		Email:        email,
		Name:         name,
		Phone:        phone,
		Age:          req.Age,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		RegisteredAt: s.nowFn().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			s.logger.Warn("registration rejected",
				"operation", "register", "outcome", "duplicate")
			return RegisterResponse{}, domain.ErrDuplicateUser
		}
		return RegisterResponse{}, err
	}

	s.logger.Info("registrant created",
		"operation", "register", "outcome", "success", "user_id", user.UserID)

	return RegisterResponse{
		UserID:       user.UserID,
		Email:        user.Email,
		Name:         user.Name,
		RegisteredAt: user.CreatedAt,
	}, nil
}

// Login authenticates the registrant and establishes a fresh session.
//
// Order matters: the IP rate limit is consumed before any account state is
// read, so a limited client learns nothing and mutates nothing. A missing
// account burns a dummy hash comparison to keep timing flat.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	if err := s.limiter.Allow(req.IPAddress, ports.LimitClassAuth); err != nil {
		s.logger.Warn("login throttled",
			"operation", "login", "outcome", "rate_limited", "ip", req.IPAddress)
		return LoginResponse{}, err
	}

	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if req.Password == "" {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	now := s.nowFn().UTC()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.DummyCompare(req.Password)
			s.recordAttempt(ctx, nil, req, now, attemptStatusFailure, "unknown email")
			return LoginResponse{}, domain.ErrInvalidCredentials
		}
		return LoginResponse{}, err
	}

	if user.LockedAt(now) {
		s.recordAttempt(ctx, &user.UserID, req, now, attemptStatusLocked, "account locked")
		s.logger.Warn("login rejected",
			"operation", "login", "outcome", "locked", "user_id", user.UserID)
		return LoginResponse{}, domain.ErrAccountLocked
	}

	// An expired lock discharges the counter: failures before the lockout
	// window do not stack with failures after it.
	priorFailures := user.FailedAttempts
	if user.LockedUntil != nil {
		priorFailures = 0
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return LoginResponse{}, s.registerFailure(ctx, user, priorFailures, req, now)
	}

	if priorFailures > 0 || user.LockedUntil != nil {
		if err := s.users.UpdateLockState(ctx, user.UserID, 0, nil, now); err != nil {
			return LoginResponse{}, err
		}
	}

	// Any lingering sessions die here so a pre-login session id can never
	// be promoted to an authenticated one.
	revoked := s.sessions.RevokeAllByUser(user.UserID)
	if revoked > 0 {
		s.logger.Info("stale sessions revoked",
			"operation", "login", "user_id", user.UserID, "count", revoked)
	}

	session, err := s.sessions.Create(user.UserID, req.IPAddress, req.UserAgent)
	if err != nil {
		return LoginResponse{}, err
	}

	expiresAt := now.Add(s.cfg.TokenTTL)
	token, err := s.signer.Sign(ports.AuthClaims{
		UserID:    user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.SessionID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.sessions.Revoke(session.SessionID)
		return LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}

	s.recordAttempt(ctx, &user.UserID, req, now, attemptStatusSuccess, "")
	s.logger.Info("login succeeded",
		"operation", "login", "outcome", "success",
		"user_id", user.UserID, "session_id", session.SessionID)

	return LoginResponse{
		Token:     token,
		SessionID: session.SessionID,
		UserID:    user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

// registerFailure increments the failure counter and locks the account when
// the attempt that just failed reaches the threshold. That attempt is
// answered as locked, not as bad credentials.
func (s *Service) registerFailure(ctx context.Context, user domain.User, priorFailures int, req LoginRequest, now time.Time) error {
	failures := priorFailures + 1

	var lockedUntil *time.Time
	status := attemptStatusFailure
	outcome := domain.ErrInvalidCredentials
	if failures >= s.cfg.MaxLoginAttempts {
		until := now.Add(s.cfg.LockoutDuration)
		lockedUntil = &until
		status = attemptStatusLocked
		outcome = domain.ErrAccountLocked
	}

	if err := s.users.UpdateLockState(ctx, user.UserID, failures, lockedUntil, now); err != nil {
		return err
	}
	s.recordAttempt(ctx, &user.UserID, req, now, status, "bad password")

	if lockedUntil != nil {
		s.logger.Warn("account locked",
			"operation", "login", "outcome", "locked",
			"user_id", user.UserID, "failed_attempts", failures,
			"locked_until", *lockedUntil)
	}
	return outcome
}

// Logout revokes the session. Revoking an already-gone session is not an
// error: the client's goal state is reached either way.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.Revoke(sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	s.logger.Info("session revoked",
		"operation", "logout", "outcome", "success", "session_id", sessionID)
	return nil
}

// VerifyRequest admits a request only when the token verifies, the session
// it names is still live, and the presented session id matches the claims.
// A valid token over a revoked session is rejected.
func (s *Service) VerifyRequest(ctx context.Context, token string, sessionID uuid.UUID) (VerifiedIdentity, error) {
	claims, err := s.signer.ParseAndValidate(token)
	if err != nil {
		return VerifiedIdentity{}, err
	}
	if claims.SessionID != sessionID {
		return VerifiedIdentity{}, domain.ErrUnauthorized
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		// Revoked and expired entries are both gone from the store; either
		// way the caller must authenticate again.
		if errors.Is(err, domain.ErrNotFound) {
			return VerifiedIdentity{}, domain.ErrSessionRevoked
		}
		return VerifiedIdentity{}, err
	}
	if session.UserID != claims.UserID {
		return VerifiedIdentity{}, domain.ErrUnauthorized
	}

	// Sliding the idle window is part of admitting the request.
	if err := s.sessions.Touch(sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return VerifiedIdentity{}, domain.ErrSessionRevoked
		}
		return VerifiedIdentity{}, err
	}

	return VerifiedIdentity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: sessionID,
	}, nil
}

func (s *Service) recordAttempt(ctx context.Context, userID *uuid.UUID, req LoginRequest, at time.Time, status, reason string) {
	attempt := domain.LoginAttempt{
		UserID:        userID,
		AttemptAt:     at,
		IPAddress:     req.IPAddress,
		Status:        status,
		FailureReason: reason,
		UserAgent:     req.UserAgent,
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		// The audit trail must never block authentication.
		s.logger.Error("login attempt not recorded",
			"operation", "login", "error", err)
	}
}
