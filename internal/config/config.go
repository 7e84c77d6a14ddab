// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// GateTokenSecret is the master secret the gate-token HMAC key is derived from.
	// Shared only between the issuing and validating trust boundary.
	GateTokenSecret string `mapstructure:"GATE_TOKEN_SECRET"`
	// GateTokenTTL is the gate token validity window (e.g. "30s").
	GateTokenTTL string `mapstructure:"GATE_TOKEN_TTL"`
	// StorageTimeout is the per-call timeout for repository reads and audit writes (e.g. "3s").
	StorageTimeout string `mapstructure:"STORAGE_TIMEOUT"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; only needed
	// by cmd/seed to mint dev JWTs. The server verifies with JWT_PUBLIC_KEY alone.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used to verify staff/member JWTs.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim (the identity directory).
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// OTLPEndpoint is the OTLP gRPC endpoint for traces and metrics; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GATE_TOKEN_SECRET", "")
	v.SetDefault("GATE_TOKEN_TTL", "30s")
	v.SetDefault("STORAGE_TIMEOUT", "3s")
	v.SetDefault("JWT_ISSUER", "gym-directory")
	v.SetDefault("JWT_AUDIENCE", "gym-access")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GateTokenSecret == "" {
		return nil, errors.New("config: GATE_TOKEN_SECRET must be set")
	}
	if cfg.Env == "production" && len(cfg.GateTokenSecret) < 32 {
		return nil, errors.New("config: GATE_TOKEN_SECRET must be at least 32 bytes when APP_ENV=production")
	}

	return &cfg, nil
}

// TokenTTL parses GateTokenTTL as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.GateTokenTTL)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// StoreTimeout parses StorageTimeout as a time.Duration. Returns 3s if unset or invalid.
func (c *Config) StoreTimeout() time.Duration {
	d, err := time.ParseDuration(c.StorageTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}
