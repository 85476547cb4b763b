package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bioapp/auth-service/internal/adapters/memstore"
	"github.com/bioapp/auth-service/internal/adapters/security"
	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
)

type fakeUsers struct {
	byEmail map[string]domain.User
	byID    map[uuid.UUID]domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail: map[string]domain.User{},
		byID:    map[uuid.UUID]domain.User{},
	}
}

func (f *fakeUsers) Create(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	if _, exists := f.byEmail[params.Email]; exists {
		return domain.User{}, domain.ErrDuplicateUser
	}
	user := domain.User{
		UserID:       uuid.New(),
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
	f.byEmail[user.Email] = user
	f.byID[user.UserID] = user
	return user, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	user, ok := f.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) UpdateLockState(_ context.Context, userID uuid.UUID, failedAttempts int, lockedUntil *time.Time, updatedAt time.Time) error {
	user, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.FailedAttempts = failedAttempts
	user.LockedUntil = lockedUntil
	user.UpdatedAt = updatedAt
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	users := make([]domain.User, 0, len(f.byID))
	for _, u := range f.byID {
		users = append(users, u)
	}
	if offset >= len(users) {
		return nil, nil
	}
	users = users[offset:]
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (f *fakeUsers) Count(_ context.Context) (int64, error) {
	return int64(len(f.byID)), nil
}

type fakeAttempts struct {
	items []domain.LoginAttempt
}

func (f *fakeAttempts) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	f.items = append(f.items, attempt)
	return nil
}

func (f *fakeAttempts) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int, since *time.Time) ([]domain.LoginAttempt, error) {
	out := make([]domain.LoginAttempt, 0)
	for _, a := range f.items {
		if a.UserID == nil || *a.UserID != userID {
			continue
		}
		if since != nil && a.AttemptAt.Before(*since) {
			continue
		}
		out = append(out, a)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeLimiter counts calls per key so the throttle threshold is deterministic.
type fakeLimiter struct {
	limit  int
	counts map[string]int
}

func (f *fakeLimiter) Allow(key, class string) error {
	if class != ports.LimitClassAuth || f.limit <= 0 {
		return nil
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	if f.counts[key] >= f.limit {
		return domain.ErrRateLimited
	}
	f.counts[key]++
	return nil
}

func (f *fakeLimiter) IsLimited(key, class string) bool {
	return class == ports.LimitClassAuth && f.limit > 0 && f.counts[key] >= f.limit
}

func (f *fakeLimiter) RetryAfter(key, class string) int {
	if f.IsLimited(key, class) {
		return 30
	}
	return 0
}

type fixture struct {
	svc      *Service
	users    *fakeUsers
	attempts *fakeAttempts
	limiter  *fakeLimiter
	sessions *memstore.SessionStore
	signer   *security.JWTSigner
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newFakeUsers()
	attempts := &fakeAttempts{}
	limiter := &fakeLimiter{limit: 10}
	sessions := memstore.NewSessionStore(time.Hour, 0)
	signer, err := security.NewJWTSigner("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	guard, err := security.NewCSRFGuard("csrf-test-secret-16b", security.CSRFOptions{})
	if err != nil {
		t.Fatalf("new csrf guard: %v", err)
	}

	svc := NewService(Config{
		MaxLoginAttempts: 5,
		LockoutDuration:  15 * time.Minute,
		TokenTTL:         30 * time.Minute,
	}, Dependencies{
		Users:    users,
		Attempts: attempts,
		Sessions: sessions,
		Limiter:  limiter,
		Hasher:   security.NewBcryptHasher(4),
		Signer:   signer,
		CSRF:     guard,
		Logger:   slog.Default(),
	})

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc.nowFn = func() time.Time { return now }

	return &fixture{
		svc:      svc,
		users:    users,
		attempts: attempts,
		limiter:  limiter,
		sessions: sessions,
		signer:   signer,
		now:      &now,
	}
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:    "jordan@example.com",
		Name:     "Jordan Doe",
		Phone:    "555-123-4567",
		Age:      30,
		Password: "Str0ngPass",
	}
}

func (f *fixture) registerAndLogin(t *testing.T) LoginResponse {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := f.svc.Login(ctx, LoginRequest{
		Email:     "jordan@example.com",
		Password:  "Str0ngPass",
		IPAddress: "10.0.0.1",
		UserAgent: "go-test",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func TestRegisterNormalizesAndPersists(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    " Jordan@Example.COM ",
		Name:     "  Jordan Doe ",
		Phone:    "(555) 123-4567",
		Age:      30,
		Password: "Str0ngPass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Email != "jordan@example.com" {
		t.Fatalf("expected normalized email, got %q", res.Email)
	}

	stored := f.users.byEmail["jordan@example.com"]
	if stored.Phone != "5551234567" {
		t.Fatalf("expected normalized phone, got %q", stored.Phone)
	}
	if stored.PasswordHash == "Str0ngPass" || stored.PasswordHash == "" {
		t.Fatalf("password must be stored hashed, got %q", stored.PasswordHash)
	}
	if stored.Role != domain.RoleUser {
		t.Fatalf("expected USER role, got %q", stored.Role)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("first register: %v", err)
	}

	req := validRegistration()
	req.Email = "JORDAN@example.com"
	if _, err := f.svc.Register(ctx, req); !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"bad email", func(r *RegisterRequest) { r.Email = "nope" }},
		{"bad name", func(r *RegisterRequest) { r.Name = "x1" }},
		{"bad phone", func(r *RegisterRequest) { r.Phone = "12345" }},
		{"underage", func(r *RegisterRequest) { r.Age = 17 }},
		{"weak password", func(r *RegisterRequest) { r.Password = "password" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegistration()
			tc.mutate(&req)
			if _, err := f.svc.Register(ctx, req); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.registerAndLogin(t)

	claims, err := f.signer.ParseAndValidate(res.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.SessionID != res.SessionID {
		t.Fatalf("token session %v does not match %v", claims.SessionID, res.SessionID)
	}

	identity, err := f.svc.VerifyRequest(context.Background(), res.Token, res.SessionID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != res.UserID || identity.Role != domain.RoleUser {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestLoginUnknownEmailHidesExistence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email:     "ghost@example.com",
		Password:  "Whatever1",
		IPAddress: "10.0.0.1",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLockoutAtThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	bad := LoginRequest{Email: "jordan@example.com", Password: "WrongPass1", IPAddress: "10.0.0.1"}
	for i := 0; i < 4; i++ {
		if _, err := f.svc.Login(ctx, bad); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("failure %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The attempt that crosses the threshold answers as locked.
	if _, err := f.svc.Login(ctx, bad); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on 5th failure, got %v", err)
	}

	// Correct password while locked is still rejected.
	good := LoginRequest{Email: "jordan@example.com", Password: "Str0ngPass", IPAddress: "10.0.0.1"}
	if _, err := f.svc.Login(ctx, good); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
}

func TestLoginRecoversAfterLockoutExpires(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	bad := LoginRequest{Email: "jordan@example.com", Password: "WrongPass1", IPAddress: "10.0.0.1"}
	for i := 0; i < 5; i++ {
		f.svc.Login(ctx, bad)
	}

	*f.now = f.now.Add(16 * time.Minute)
	good := LoginRequest{Email: "jordan@example.com", Password: "Str0ngPass", IPAddress: "10.0.0.1"}
	res, err := f.svc.Login(ctx, good)
	if err != nil {
		t.Fatalf("expected recovery after lock expiry, got %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token after recovery")
	}

	stored := f.users.byEmail["jordan@example.com"]
	if stored.FailedAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected counter reset, got attempts=%d locked=%v", stored.FailedAttempts, stored.LockedUntil)
	}
}

func TestLoginFailureCounterRestartsAfterExpiredLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	bad := LoginRequest{Email: "jordan@example.com", Password: "WrongPass1", IPAddress: "10.0.0.1"}
	for i := 0; i < 5; i++ {
		f.svc.Login(ctx, bad)
	}

	// One failure after the lock expires must not re-lock immediately.
	*f.now = f.now.Add(16 * time.Minute)
	if _, err := f.svc.Login(ctx, bad); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after lock expiry, got %v", err)
	}
	stored := f.users.byEmail["jordan@example.com"]
	if stored.FailedAttempts != 1 {
		t.Fatalf("expected counter restart at 1, got %d", stored.FailedAttempts)
	}
}

func TestLoginRateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	bad := LoginRequest{Email: "jordan@example.com", Password: "WrongPass1", IPAddress: "10.0.0.1"}
	for i := 0; i < 10; i++ {
		f.svc.Login(ctx, bad)
	}

	// The 11th request is rejected before any account state is read.
	attemptsBefore := len(f.attempts.items)
	if _, err := f.svc.Login(ctx, bad); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 11th request, got %v", err)
	}
	if len(f.attempts.items) != attemptsBefore {
		t.Fatal("rate-limited request must not record an attempt")
	}
	if !f.svc.IsRateLimited("10.0.0.1", ports.LimitClassAuth) {
		t.Fatal("expected the ip to report as limited for the auth class")
	}
	if f.svc.RetryAfter("10.0.0.1", ports.LimitClassAuth) <= 0 {
		t.Fatal("expected a positive retry-after for the auth class")
	}
	if f.svc.IsRateLimited("10.0.0.1", ports.LimitClassGeneral) {
		t.Fatal("auth-class exhaustion must not leak into the general class")
	}
	if f.svc.IsRateLimited("10.0.0.2", ports.LimitClassAuth) {
		t.Fatal("an untouched ip must not report as limited")
	}
}

func TestLoginRevokesExistingSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := f.registerAndLogin(t)

	second, err := f.svc.Login(ctx, LoginRequest{
		Email:     "jordan@example.com",
		Password:  "Str0ngPass",
		IPAddress: "10.0.0.2",
	})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("expected a fresh session id per login")
	}

	if _, err := f.svc.VerifyRequest(ctx, first.Token, first.SessionID); err == nil {
		t.Fatal("expected first session to be revoked by second login")
	}
}

func TestVerifyRequestRejectsRevokedSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.registerAndLogin(t)

	if err := f.svc.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// Token is still cryptographically valid; the dead session decides.
	if _, err := f.svc.VerifyRequest(ctx, res.Token, res.SessionID); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestVerifyRequestRejectsSessionMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.registerAndLogin(t)

	if _, err := f.svc.VerifyRequest(context.Background(), res.Token, uuid.New()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for session mismatch, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.registerAndLogin(t)

	if err := f.svc.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if err := f.svc.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("second logout should be a no-op, got %v", err)
	}
}

func TestListRegistrantsRequiresAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.registerAndLogin(t)

	caller := VerifiedIdentity{UserID: res.UserID, Role: domain.RoleUser}
	if _, err := f.svc.ListRegistrants(ctx, caller, 10, 0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	admin := VerifiedIdentity{UserID: uuid.New(), Role: domain.RoleAdmin}
	page, err := f.svc.ListRegistrants(ctx, admin, 10, 0)
	if err != nil {
		t.Fatalf("admin listing: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one registrant, got total=%d items=%d", page.Total, len(page.Items))
	}
}

func TestCSRFIssueAndValidateThroughService(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.registerAndLogin(t)

	token, err := f.svc.IssueCSRF(res.SessionID)
	if err != nil {
		t.Fatalf("issue csrf: %v", err)
	}
	if err := f.svc.ValidateCSRF(res.SessionID, token); err != nil {
		t.Fatalf("validate csrf: %v", err)
	}
	if err := f.svc.ValidateCSRF(uuid.New(), token); !errors.Is(err, domain.ErrCSRFInvalid) {
		t.Fatalf("expected ErrCSRFInvalid for foreign session, got %v", err)
	}
}

func TestLoginHistoryScoping(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res := f.registerAndLogin(t)

	self := VerifiedIdentity{UserID: res.UserID, Role: domain.RoleUser}
	attempts, err := f.svc.LoginHistory(ctx, self, res.UserID, 10, 0)
	if err != nil {
		t.Fatalf("own history: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Status != attemptStatusSuccess {
		t.Fatalf("expected one successful attempt, got %+v", attempts)
	}

	if _, err := f.svc.LoginHistory(ctx, self, uuid.New(), 10, 0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign history, got %v", err)
	}
}
