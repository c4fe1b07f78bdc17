// Package bootstrap provides dependency initialization for the pipeline
// and the reconciliation job.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/craftvista/showreel-api/internal/config"
	"github.com/craftvista/showreel-api/internal/credentials"
	"github.com/craftvista/showreel-api/internal/gemini"
	"github.com/craftvista/showreel-api/internal/media"
	"github.com/craftvista/showreel-api/internal/pipeline"
	"github.com/craftvista/showreel-api/internal/prompt"
	"github.com/craftvista/showreel-api/internal/publish"
	"github.com/craftvista/showreel-api/internal/reconcile"
	"github.com/craftvista/showreel-api/internal/script"
	"github.com/craftvista/showreel-api/internal/storage"
	"github.com/craftvista/showreel-api/internal/tts"
	"github.com/craftvista/showreel-api/internal/videogen"
)

// Dependencies holds the initialized application services.
type Dependencies struct {
	Pipeline   *pipeline.Service
	Reconciler *reconcile.Job
	Storage    storage.ObjectStorage
}

// NewDependencies creates and wires all dependencies from configuration.
// The reference sources feed the reconciliation job; callers supply them
// from their system of record.
func NewDependencies(cfg *config.Config, logger *slog.Logger, sources []reconcile.ReferenceSource) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	sa, err := credentials.Decrypt(cfg.CredentialBlobB64, cfg.CredentialPassphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	tokens := credentials.NewGoogleTokenProvider(sa)

	model, err := gemini.NewClient(
		gemini.WithAPIKey(cfg.GeminiAPIKey),
		gemini.WithModel(cfg.GeminiModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	video, err := videogen.NewClient(cfg.VideoModel,
		videogen.WithPollInterval(cfg.PollInterval),
		videogen.WithMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("create video client: %w", err)
	}

	fetcher := media.NewFetcher(nil)
	temp := storage.NewTempStore(cfg.TempDir)
	synth := tts.NewClient(cfg.TTSAPIKey, cfg.TTSVoiceID, temp)

	svc := pipeline.NewService(pipeline.Dependencies{
		Scripts:       script.NewGenerator(model, fetcher, logger),
		Prompts:       prompt.NewGenerator(model, fetcher, logger),
		Synth:         synth,
		Images:        fetcher,
		Tokens:        tokens,
		Video:         video,
		Publisher:     publish.NewPublisher(store),
		Composer:      publish.NewComposer(store),
		Temp:          temp,
		StagingBucket: cfg.StagingBucket,
		Logger:        logger,
	})

	return &Dependencies{
		Pipeline:   svc,
		Reconciler: reconcile.NewJob(store, sources, logger),
		Storage:    store,
	}, nil
}

// initStorage creates the durable storage backend based on configuration.
// The media CDN takes precedence; S3 is the fallback provider.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.ObjectStorage, error) {
	if cfg.CDNEnabled() {
		cdn, err := storage.NewCDNStorage(cfg.CDNCloudName, cfg.CDNAPIKey, cfg.CDNAPISecret)
		if err != nil {
			return nil, fmt.Errorf("create CDN storage: %w", err)
		}
		logger.Info("CDN storage configured",
			slog.String("cloud_name", cfg.CDNCloudName),
		)
		return cdn, nil
	}

	s3Store, err := storage.NewS3Storage(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return s3Store, nil
}
