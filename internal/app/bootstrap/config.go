package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the auth service.
// It merges file defaults and environment overrides to support both local
// and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	MaxDBConns  int32

	TokenSigningKey    string
	CSRFSecret         string
	AllowEphemeralKeys bool
	BcryptCost         int

	TokenTTL         time.Duration
	SessionTTL       time.Duration
	IdleTimeout      time.Duration
	SweepInterval    time.Duration
	LockoutDuration  time.Duration
	MaxLoginAttempts int

	RateLimitWindow  time.Duration
	AuthRateLimit    int
	GeneralRateLimit int

	CSRFTokenTTL  time.Duration
	CSRFSingleUse bool
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		MaxDBConns  int    `yaml:"max_db_conns"`
	} `yaml:"dependencies"`
	Security struct {
		TokenSigningKey    string `yaml:"token_signing_key"`
		CSRFSecret         string `yaml:"csrf_secret"`
		AllowEphemeralKeys *bool  `yaml:"allow_ephemeral_keys"`
		PasswordWorkFactor int    `yaml:"password_work_factor"`
		TokenTTLMinutes    int    `yaml:"token_ttl_minutes"`
	} `yaml:"security"`
	Sessions struct {
		TTLMinutes           int `yaml:"session_ttl_minutes"`
		IdleTimeoutMinutes   int `yaml:"idle_timeout_minutes"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	} `yaml:"sessions"`
	RateLimit struct {
		WindowSeconds    int `yaml:"window_seconds"`
		AuthPerMinute    int `yaml:"auth_rate_limit_per_minute"`
		GeneralPerMinute int `yaml:"general_rate_limit_per_minute"`
	} `yaml:"rate_limit"`
	Lockout struct {
		MaxLoginAttempts int `yaml:"max_login_attempts"`
		DurationMinutes  int `yaml:"lockout_duration_minutes"`
	} `yaml:"lockout"`
	CSRF struct {
		TTLMinutes int   `yaml:"ttl_minutes"`
		SingleUse  *bool `yaml:"single_use"`
	} `yaml:"csrf"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "auth-service",
		HTTPPort:           8080,
		GRPCPort:           9090,
		MaxDBConns:         20,
		AllowEphemeralKeys: true,
		BcryptCost:         12,
		TokenTTL:           30 * time.Minute,
		SessionTTL:         30 * time.Minute,
		IdleTimeout:        15 * time.Minute,
		SweepInterval:      time.Minute,
		LockoutDuration:    15 * time.Minute,
		MaxLoginAttempts:   5,
		RateLimitWindow:    time.Minute,
		AuthRateLimit:      10,
		GeneralRateLimit:   60,
		CSRFTokenTTL:       time.Hour,
		CSRFSingleUse:      false,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.MaxDBConns > 0 {
			cfg.MaxDBConns = int32(f.Dependencies.MaxDBConns)
		}
		if f.Security.TokenSigningKey != "" {
			cfg.TokenSigningKey = f.Security.TokenSigningKey
		}
		if f.Security.CSRFSecret != "" {
			cfg.CSRFSecret = f.Security.CSRFSecret
		}
		if f.Security.AllowEphemeralKeys != nil {
			cfg.AllowEphemeralKeys = *f.Security.AllowEphemeralKeys
		}
		if f.Security.PasswordWorkFactor > 0 {
			cfg.BcryptCost = f.Security.PasswordWorkFactor
		}
		if f.Security.TokenTTLMinutes > 0 {
			cfg.TokenTTL = time.Duration(f.Security.TokenTTLMinutes) * time.Minute
		}
		if f.Sessions.TTLMinutes > 0 {
			cfg.SessionTTL = time.Duration(f.Sessions.TTLMinutes) * time.Minute
		}
		if f.Sessions.IdleTimeoutMinutes > 0 {
			cfg.IdleTimeout = time.Duration(f.Sessions.IdleTimeoutMinutes) * time.Minute
		}
		if f.Sessions.SweepIntervalSeconds > 0 {
			cfg.SweepInterval = time.Duration(f.Sessions.SweepIntervalSeconds) * time.Second
		}
		if f.RateLimit.WindowSeconds > 0 {
			cfg.RateLimitWindow = time.Duration(f.RateLimit.WindowSeconds) * time.Second
		}
		if f.RateLimit.AuthPerMinute > 0 {
			cfg.AuthRateLimit = f.RateLimit.AuthPerMinute
		}
		if f.RateLimit.GeneralPerMinute > 0 {
			cfg.GeneralRateLimit = f.RateLimit.GeneralPerMinute
		}
		if f.Lockout.MaxLoginAttempts > 0 {
			cfg.MaxLoginAttempts = f.Lockout.MaxLoginAttempts
		}
		if f.Lockout.DurationMinutes > 0 {
			cfg.LockoutDuration = time.Duration(f.Lockout.DurationMinutes) * time.Minute
		}
		if f.CSRF.TTLMinutes > 0 {
			cfg.CSRFTokenTTL = time.Duration(f.CSRF.TTLMinutes) * time.Minute
		}
		if f.CSRF.SingleUse != nil {
			cfg.CSRFSingleUse = *f.CSRF.SingleUse
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.TokenSigningKey = envOrDefault("TOKEN_SIGNING_KEY", cfg.TokenSigningKey)
	cfg.CSRFSecret = envOrDefault("CSRF_SECRET", cfg.CSRFSecret)
	cfg.AllowEphemeralKeys = envBool("ALLOW_EPHEMERAL_KEYS", cfg.AllowEphemeralKeys)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxLoginAttempts = envInt("MAX_LOGIN_ATTEMPTS", cfg.MaxLoginAttempts)
	cfg.AuthRateLimit = envInt("AUTH_RATE_LIMIT_PER_MINUTE", cfg.AuthRateLimit)
	cfg.GeneralRateLimit = envInt("GENERAL_RATE_LIMIT_PER_MINUTE", cfg.GeneralRateLimit)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.TokenTTL = time.Duration(envInt("TOKEN_TTL_MINUTES", int(cfg.TokenTTL.Minutes()))) * time.Minute
	cfg.SessionTTL = time.Duration(envInt("SESSION_TTL_MINUTES", int(cfg.SessionTTL.Minutes()))) * time.Minute
	cfg.IdleTimeout = time.Duration(envInt("IDLE_TIMEOUT_MINUTES", int(cfg.IdleTimeout.Minutes()))) * time.Minute
	cfg.SweepInterval = time.Duration(envInt("SESSION_SWEEP_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.LockoutDuration = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutDuration.Minutes()))) * time.Minute
	cfg.RateLimitWindow = time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow.Seconds()))) * time.Second
	cfg.CSRFTokenTTL = time.Duration(envInt("CSRF_TTL_MINUTES", int(cfg.CSRFTokenTTL.Minutes()))) * time.Minute
	cfg.CSRFSingleUse = envBool("CSRF_SINGLE_USE", cfg.CSRFSingleUse)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.TokenSigningKey == "" && !cfg.AllowEphemeralKeys {
		return Config{}, fmt.Errorf("missing TOKEN_SIGNING_KEY")
	}
	if cfg.CSRFSecret == "" && !cfg.AllowEphemeralKeys {
		return Config{}, fmt.Errorf("missing CSRF_SECRET")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
