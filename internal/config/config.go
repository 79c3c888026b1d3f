// Package config loads process configuration from POSTBOARD_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"postboard.dev/internal/auth"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DSN         string `env:"PG_DSN"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	AuthMode     string        `env:"AUTH_MODE" envDefault:"token"`
	AuthSecret   string        `env:"AUTH_SECRET"`
	TokenIssuer  string        `env:"TOKEN_ISSUER" envDefault:"postboard"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	PasswordCost int           `env:"PASSWORD_COST" envDefault:"13"`

	MutationTimeout time.Duration `env:"MUTATION_TIMEOUT" envDefault:"5s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "POSTBOARD_"})
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Mode returns the parsed auth mode. Validate guarantees it parses.
func (c Config) Mode() auth.Mode {
	m, _ := auth.ParseMode(c.AuthMode)
	return m
}

func (c Config) Validate() error {
	var errs []error
	mode, err := auth.ParseMode(c.AuthMode)
	if err != nil {
		errs = append(errs, err)
	}
	if mode == auth.ModeToken && strings.TrimSpace(c.AuthSecret) == "" {
		errs = append(errs, errors.New("POSTBOARD_AUTH_SECRET is required in token mode"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.PasswordCost < 4 || c.PasswordCost > 31 {
		errs = append(errs, fmt.Errorf("password cost %d out of bcrypt range", c.PasswordCost))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	return errors.Join(errs...)
}

// TokenConfig builds the signing configuration handed to auth.
func (c Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret: []byte(c.AuthSecret),
		Issuer: c.TokenIssuer,
		TTL:    c.TokenTTL,
	}
}
