// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrGeminiAPIKeyRequired is returned when GEMINI_API_KEY is not set.
	ErrGeminiAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")
	// ErrCredentialBlobRequired is returned when VERTEX_CREDENTIALS_B64 is not set.
	ErrCredentialBlobRequired = errors.New("config: VERTEX_CREDENTIALS_B64 is required")
	// ErrCredentialPassphraseRequired is returned when CREDENTIALS_PASSPHRASE is not set.
	ErrCredentialPassphraseRequired = errors.New("config: CREDENTIALS_PASSPHRASE is required")
	// ErrStorageNotConfigured is returned when neither CDN nor S3 storage settings are present.
	ErrStorageNotConfigured = errors.New("config: either CDN_* or S3_* storage settings are required")
)

// Config holds all configuration for the application.
type Config struct {
	// Generative model settings
	GeminiAPIKey string `env:"GEMINI_API_KEY, required" json:"-"` // Masked in JSON
	GeminiModel  string `env:"GEMINI_MODEL, default=gemini-2.0-flash" json:"gemini_model"`

	// Encrypted service account used for video synthesis and staging cleanup
	CredentialBlobB64    string `env:"VERTEX_CREDENTIALS_B64, required" json:"-"` // Masked in JSON
	CredentialPassphrase string `env:"CREDENTIALS_PASSPHRASE, required" json:"-"` // Masked in JSON

	// Video synthesis settings
	VideoModel      string        `env:"VIDEO_MODEL, default=veo-3.0-generate-001" json:"video_model"`
	StagingBucket   string        `env:"STAGING_BUCKET, default=showreel-staging" json:"staging_bucket"`
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=10s" json:"poll_interval"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=60" json:"poll_max_attempts"`

	// Speech synthesis settings (optional; audio is skipped when unset)
	TTSAPIKey  string `env:"TTS_API_KEY" json:"-"` // Masked in JSON
	TTSVoiceID string `env:"TTS_VOICE_ID, default=EXAVITQu4vr4xnSDxMaL" json:"tts_voice_id"`

	// Durable storage: media CDN
	CDNCloudName string `env:"CDN_CLOUD_NAME" json:"cdn_cloud_name,omitempty"`
	CDNAPIKey    string `env:"CDN_API_KEY" json:"-"`    // Masked in JSON
	CDNAPISecret string `env:"CDN_API_SECRET" json:"-"` // Masked in JSON

	// Durable storage: S3 (used when CDN settings are absent)
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Local storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/showreel" json:"temp_dir"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// TTSEnabled returns true if speech synthesis configuration is provided.
func (c *Config) TTSEnabled() bool {
	return c.TTSAPIKey != ""
}

// CDNEnabled returns true if media CDN configuration is provided.
func (c *Config) CDNEnabled() bool {
	return c.CDNCloudName != "" && c.CDNAPIKey != "" && c.CDNAPISecret != ""
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "GEMINI_API_KEY") {
			return nil, ErrGeminiAPIKeyRequired
		}
		if strings.Contains(err.Error(), "VERTEX_CREDENTIALS_B64") {
			return nil, ErrCredentialBlobRequired
		}
		if strings.Contains(err.Error(), "CREDENTIALS_PASSPHRASE") {
			return nil, ErrCredentialPassphraseRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrGeminiAPIKeyRequired
	}
	if c.CredentialBlobB64 == "" {
		return ErrCredentialBlobRequired
	}
	if c.CredentialPassphrase == "" {
		return ErrCredentialPassphraseRequired
	}
	if !c.CDNEnabled() && !c.S3Enabled() {
		return ErrStorageNotConfigured
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{GeminiModel: %s, VideoModel: %s, StagingBucket: %s, PollInterval: %s, PollMaxAttempts: %d, TTSEnabled: %t, CDNCloudName: %s, S3Bucket: %s, S3Region: %s, TempDir: %s, LogFormat: %s, LogLevel: %s}",
		c.GeminiModel,
		c.VideoModel,
		c.StagingBucket,
		c.PollInterval,
		c.PollMaxAttempts,
		c.TTSEnabled(),
		c.CDNCloudName,
		c.S3Bucket,
		c.S3Region,
		c.TempDir,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
