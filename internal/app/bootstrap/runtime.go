package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "github.com/bioapp/auth-service/internal/adapters/grpc"
	httpadapter "github.com/bioapp/auth-service/internal/adapters/http"
	"github.com/bioapp/auth-service/internal/adapters/memstore"
	"github.com/bioapp/auth-service/internal/adapters/postgres"
	"github.com/bioapp/auth-service/internal/adapters/security"
	"github.com/bioapp/auth-service/internal/application"
	"github.com/bioapp/auth-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	sessions   *memstore.SessionStore
	limiter    *memstore.RateLimiter
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping authentication service",
		"http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repos := postgres.NewRepositories(pool)

	var signer *security.JWTSigner
	if cfg.TokenSigningKey != "" {
		signer, err = security.NewJWTSigner(cfg.TokenSigningKey)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("init token signer: %w", err)
		}
	} else {
		// Every outstanding token dies with the process; acceptable for
		// local and dev runs only.
		logger.Warn("using ephemeral signing key, tokens will not survive a restart")
		signer, err = security.NewEphemeralJWTSigner()
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("init ephemeral token signer: %w", err)
		}
	}

	csrfGuard, err := security.NewCSRFGuard(cfg.CSRFSecret, security.CSRFOptions{
		TTL:       cfg.CSRFTokenTTL,
		SingleUse: cfg.CSRFSingleUse,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init csrf guard: %w", err)
	}
	if cfg.CSRFSecret == "" {
		logger.Warn("using ephemeral csrf secret, tokens will not survive a restart")
	}

	sessions := memstore.NewSessionStore(cfg.SessionTTL, cfg.IdleTimeout)
	limiter := memstore.NewRateLimiter(cfg.RateLimitWindow, map[string]int{
		ports.LimitClassAuth:    cfg.AuthRateLimit,
		ports.LimitClassGeneral: cfg.GeneralRateLimit,
	})

	svc := application.NewService(application.Config{
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		LockoutDuration:  cfg.LockoutDuration,
		TokenTTL:         cfg.TokenTTL,
	}, application.Dependencies{
		Users:    repos.Users,
		Attempts: repos.LoginAttempts,
		Sessions: sessions,
		Limiter:  limiter,
		Hasher:   security.NewBcryptHasher(cfg.BcryptCost),
		Signer:   signer,
		CSRF:     csrfGuard,
		Logger:   logger,
	})

	handler := httpadapter.NewHandler(svc, limiter)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewAuthInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		sessions:   sessions,
		limiter:    limiter,
		cleanupFn: func(ctx context.Context) {
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.sessions.Start(r.cfg.SweepInterval)
	r.limiter.Start(5 * r.cfg.RateLimitWindow)

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.sessions.Stop()
	r.limiter.Stop()
	r.cleanupFn(shutdownCtx)
	return nil
}
