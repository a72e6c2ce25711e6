// Package config loads and validates the service configuration from the
// environment. Every knob is a TOWNS_-prefixed variable; validation failures
// abort startup with the full list of problems.
package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
)

// envPrefix namespaces every configuration variable.
const envPrefix = "TOWNS_"

// Config holds the validated environment configuration.
type Config struct {
	// Server
	Port           int    `koanf:"port" validate:"required,min=1,max=65535"`
	Environment    string `koanf:"environment" validate:"oneof=development production"`
	LogLevel       string `koanf:"log_level" validate:"oneof=debug info warn error"`
	AllowedOrigins string `koanf:"allowed_origins"`

	// Towns
	MaxPlayersPerTown int `koanf:"max_players_per_town" validate:"min=1"`

	// Video token provider. In local mode an unset secret is replaced by an
	// ephemeral one at startup (development only).
	VideoTokenMode       string `koanf:"video_token_mode" validate:"oneof=local remote"`
	VideoAPIKey          string `koanf:"video_api_key"`
	VideoAPISecret       string `koanf:"video_api_secret" validate:"omitempty,min=32"`
	VideoServiceURL      string `koanf:"video_service_url" validate:"required_if=VideoTokenMode remote,omitempty,url"`
	VideoTokenTTLSeconds int    `koanf:"video_token_ttl_seconds" validate:"min=60"`

	// Rate limits (format: <count>-<period>, M = minute, H = hour)
	RateLimitAPI string `koanf:"rate_limit_api"`
	RateLimitWs  string `koanf:"rate_limit_ws"`

	// Tracing (empty disables the exporter)
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

func defaults() Config {
	return Config{
		Port:                 8081,
		Environment:          "production",
		LogLevel:             "info",
		MaxPlayersPerTown:    50,
		VideoTokenMode:       "local",
		VideoTokenTTLSeconds: 3600,
		RateLimitAPI:         "1000-M",
		RateLimitWs:          "100-M",
	}
}

// Load reads TOWNS_* environment variables over the defaults and validates
// the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	logValidatedConfig(&cfg)
	return &cfg, nil
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

func validate(cfg *Config) error {
	v := validator.New()
	// Report fields by their koanf key so messages name the real variable.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s%s failed %q validation (got %v)",
			envPrefix, strings.ToUpper(fe.Field()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
}

// logValidatedConfig logs the validated configuration with secrets redacted.
func logValidatedConfig(cfg *Config) {
	logging.Info(context.Background(), "Environment configuration validated",
		zap.Int("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.Int("max_players_per_town", cfg.MaxPlayersPerTown),
		zap.String("video_token_mode", cfg.VideoTokenMode),
		zap.String("video_api_secret", logging.RedactToken(cfg.VideoAPISecret)),
		zap.String("video_service_url", cfg.VideoServiceURL),
		zap.String("rate_limit_api", cfg.RateLimitAPI),
		zap.String("rate_limit_ws", cfg.RateLimitWs),
	)
}
