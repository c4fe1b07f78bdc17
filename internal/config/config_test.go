package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the config reads so individual
// subtests start from a clean environment.
func clearEnv() {
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("GEMINI_MODEL")
	os.Unsetenv("VERTEX_CREDENTIALS_B64")
	os.Unsetenv("CREDENTIALS_PASSPHRASE")
	os.Unsetenv("VIDEO_MODEL")
	os.Unsetenv("STAGING_BUCKET")
	os.Unsetenv("POLL_INTERVAL")
	os.Unsetenv("POLL_MAX_ATTEMPTS")
	os.Unsetenv("TTS_API_KEY")
	os.Unsetenv("TTS_VOICE_ID")
	os.Unsetenv("CDN_CLOUD_NAME")
	os.Unsetenv("CDN_API_KEY")
	os.Unsetenv("CDN_API_SECRET")
	os.Unsetenv("S3_BUCKET")
	os.Unsetenv("S3_REGION")
	os.Unsetenv("AWS_ACCESS_KEY_ID")
	os.Unsetenv("AWS_SECRET_ACCESS_KEY")
	os.Unsetenv("TEMP_DIR")
	os.Unsetenv("LOG_FORMAT")
	os.Unsetenv("LOG_LEVEL")
}

// setRequired sets the minimum viable environment: the required
// variables plus one storage backend.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("VERTEX_CREDENTIALS_B64", "dGVzdA==")
	t.Setenv("CREDENTIALS_PASSPHRASE", "test-pass")
	t.Setenv("CDN_CLOUD_NAME", "test-cloud")
	t.Setenv("CDN_API_KEY", "cdn-key")
	t.Setenv("CDN_API_SECRET", "cdn-secret")
}

func TestLoad_RequiredVariables(t *testing.T) {
	t.Run("missing GEMINI_API_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("VERTEX_CREDENTIALS_B64", "dGVzdA==")
		t.Setenv("CREDENTIALS_PASSPHRASE", "test-pass")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGeminiAPIKeyRequired)
	})

	t.Run("missing VERTEX_CREDENTIALS_B64 returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("GEMINI_API_KEY", "test-gemini-key")
		t.Setenv("CREDENTIALS_PASSPHRASE", "test-pass")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCredentialBlobRequired)
	})

	t.Run("missing CREDENTIALS_PASSPHRASE returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("GEMINI_API_KEY", "test-gemini-key")
		t.Setenv("VERTEX_CREDENTIALS_B64", "dGVzdA==")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCredentialPassphraseRequired)
	})

	t.Run("missing storage backend returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("GEMINI_API_KEY", "test-gemini-key")
		t.Setenv("VERTEX_CREDENTIALS_B64", "dGVzdA==")
		t.Setenv("CREDENTIALS_PASSPHRASE", "test-pass")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStorageNotConfigured)
	})

	t.Run("all required variables present succeeds", func(t *testing.T) {
		clearEnv()
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-gemini-key", cfg.GeminiAPIKey)
		assert.Equal(t, "test-pass", cfg.CredentialPassphrase)
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "veo-3.0-generate-001", cfg.VideoModel)
	assert.Equal(t, "showreel-staging", cfg.StagingBucket)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 60, cfg.PollMaxAttempts)
	assert.Equal(t, "/tmp/showreel", cfg.TempDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	setRequired(t)
	t.Setenv("VIDEO_MODEL", "veo-2.0-generate-001")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("POLL_MAX_ATTEMPTS", "5")
	t.Setenv("TEMP_DIR", "/custom/temp")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "veo-2.0-generate-001", cfg.VideoModel)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.PollMaxAttempts)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
}

func TestBackendToggles(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.TTSEnabled())
	assert.False(t, cfg.CDNEnabled())
	assert.False(t, cfg.S3Enabled())

	cfg.TTSAPIKey = "k"
	assert.True(t, cfg.TTSEnabled())

	cfg.S3Bucket = "bucket"
	assert.False(t, cfg.S3Enabled())
	cfg.S3Region = "us-east-1"
	assert.True(t, cfg.S3Enabled())

	cfg.CDNCloudName = "cloud"
	cfg.CDNAPIKey = "key"
	assert.False(t, cfg.CDNEnabled())
	cfg.CDNAPISecret = "secret"
	assert.True(t, cfg.CDNEnabled())
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		GeminiAPIKey:         "super-secret",
		CredentialPassphrase: "hunter2",
		TTSAPIKey:            "tts-secret",
		CDNAPISecret:         "cdn-secret",
		GeminiModel:          "gemini-2.0-flash",
	}

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "tts-secret")
	assert.NotContains(t, s, "cdn-secret")
	assert.Contains(t, s, "gemini-2.0-flash")
}
