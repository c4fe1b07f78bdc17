// Package pipeline coordinates the marketing video generation run:
// optional narration audio, prompt generation, video synthesis,
// publication and playback composition. Every path, including panics,
// yields a GenerationResult; no error crosses the boundary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/craftvista/showreel-api/internal/credentials"
	"github.com/craftvista/showreel-api/internal/prompt"
	"github.com/craftvista/showreel-api/internal/script"
	"github.com/craftvista/showreel-api/internal/storage"
	"github.com/craftvista/showreel-api/internal/tts"
	"github.com/craftvista/showreel-api/internal/videogen"
)

// ScriptGenerator produces a narration script. Implementations never
// fail; they fall back to a deterministic template.
type ScriptGenerator interface {
	Generate(ctx context.Context, p script.Product) string
}

// PromptGenerator produces a cinematic scene description, also
// fallback-first.
type PromptGenerator interface {
	Generate(ctx context.Context, p prompt.Product) string
}

// ImageFetcher downloads the source product image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error)
}

// Publisher moves pipeline outputs into durable storage.
type Publisher interface {
	PublishVideo(ctx context.Context, stagingURI, productID string, timestamp int64) (string, error)
	PublishAudio(ctx context.Context, localPath, productID string, timestamp int64) (string, error)
}

// Composer derives the playback URL overlaying audio onto video.
type Composer interface {
	PlaybackURL(videoURL, audioURL string) (string, error)
}

// Dependencies carries the collaborators a Service needs.
type Dependencies struct {
	Scripts       ScriptGenerator
	Prompts       PromptGenerator
	Synth         tts.Synthesizer
	Images        ImageFetcher
	Tokens        credentials.TokenProvider
	Video         videogen.Client
	Publisher     Publisher
	Composer      Composer
	Temp          *storage.TempStore
	StagingBucket string
	Logger        *slog.Logger
}

// Service is the pipeline coordinator.
type Service struct {
	deps     Dependencies
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the coordinator.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// Generate runs the full pipeline for one product and returns a uniform
// result. Stages run strictly in order; optional-stage failures are
// absorbed, fatal ones trigger compensation of prior side effects.
func (s *Service) Generate(ctx context.Context, req GenerationRequest) (res GenerationResult) {
	logger := s.logger.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("product_id", req.ProductID),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("generation panicked", slog.String("panic", fmt.Sprint(r)))
			res = GenerationResult{Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	opts := req.Options.withDefaults()
	req.Options = opts
	if err := s.validate.Struct(req); err != nil {
		logger.Error("invalid generation request", slog.String("error", err.Error()))
		return GenerationResult{Error: fmt.Sprintf("invalid request: %v", err)}
	}

	logger.Info("starting video generation",
		slog.String("aspect_ratio", opts.AspectRatio),
		slog.Bool("include_audio", opts.IncludeAudio),
	)

	timestamp := s.now().Unix()
	sg := newSaga(logger)

	// Audio first, entirely optional. Failures leave the run audio-less.
	var audioScript, audioURL, audioPath string
	if opts.IncludeAudio {
		audioScript, audioURL, audioPath = s.generateAudio(ctx, logger, req, timestamp)
	}
	defer func() {
		if audioPath == "" {
			return
		}
		if err := s.deps.Temp.Cleanup(context.WithoutCancel(ctx), []string{audioPath}); err != nil {
			logger.Warn("temp audio cleanup failed", slog.String("error", err.Error()))
		}
	}()

	imageBytes, mimeType, err := s.deps.Images.Fetch(ctx, req.ImageURL)
	if err != nil {
		return s.fail(ctx, sg, logger, fmt.Errorf("fetch source image: %w", err))
	}

	videoPrompt := s.deps.Prompts.Generate(ctx, prompt.Product{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})

	token, err := s.deps.Tokens.AccessToken(ctx)
	if err != nil {
		return s.fail(ctx, sg, logger, fmt.Errorf("fetch access token: %w", err))
	}

	op, err := s.deps.Video.Submit(ctx, token, videogen.SubmitInput{
		Prompt:          videoPrompt,
		ImageBytes:      imageBytes,
		MimeType:        mimeType,
		AspectRatio:     opts.AspectRatio,
		DurationSeconds: opts.DurationSeconds,
		Resolution:      opts.Resolution,
		StorageURI:      fmt.Sprintf("gs://%s/products/%s", s.deps.StagingBucket, req.ProductID),
	})
	if err != nil {
		return s.fail(ctx, sg, logger, fmt.Errorf("submit video synthesis: %w", err))
	}

	stagingURI, err := s.deps.Video.Poll(ctx, token, op)
	if err != nil {
		return s.fail(ctx, sg, logger, fmt.Errorf("video synthesis: %w", err))
	}
	sg.onFailure("delete staging output", func(cctx context.Context) error {
		return s.deps.Video.DeleteStaging(cctx, token, stagingURI)
	})

	baseVideoURL, err := s.deps.Publisher.PublishVideo(ctx, stagingURI, req.ProductID, timestamp)
	if err != nil {
		return s.fail(ctx, sg, logger, err)
	}

	// A visible video is deliverable from here on; composition failures
	// only lose the overlay.
	playbackURL := baseVideoURL
	if audioURL != "" {
		composed, err := s.deps.Composer.PlaybackURL(baseVideoURL, audioURL)
		if err != nil {
			logger.Warn("playback composition failed, using base video URL",
				slog.String("error", err.Error()))
		} else {
			playbackURL = composed
		}
	}

	if err := s.deps.Video.DeleteStaging(ctx, token, stagingURI); err != nil {
		logger.Warn("staging cleanup failed", slog.String("error", err.Error()))
	}

	logger.Info("video generation completed",
		slog.Bool("has_audio", audioURL != ""),
		slog.String("base_video_url", baseVideoURL),
	)

	return GenerationResult{
		Success:      true,
		BaseVideoURL: baseVideoURL,
		PlaybackURL:  playbackURL,
		AudioURL:     audioURL,
		AudioScript:  audioScript,
		VideoPrompt:  videoPrompt,
		GeneratedAt:  s.now().UTC(),
		Duration:     opts.DurationSeconds,
		AspectRatio:  opts.AspectRatio,
		HasAudio:     audioURL != "",
	}
}

// generateAudio runs the script, synthesis and audio publish stages.
// Any failure returns empty values; the pipeline continues without audio.
// The returned path, when non-empty, points at the local temp file the
// caller must clean up by pipeline end.
func (s *Service) generateAudio(ctx context.Context, logger *slog.Logger, req GenerationRequest, timestamp int64) (audioScript, audioURL, audioPath string) {
	narration := s.deps.Scripts.Generate(ctx, script.Product{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})

	path, err := s.deps.Synth.Synthesize(ctx, narration, req.ProductID, timestamp)
	if err != nil {
		logger.Warn("audio synthesis failed, continuing without audio",
			slog.String("error", err.Error()))
		return "", "", ""
	}

	url, err := s.deps.Publisher.PublishAudio(ctx, path, req.ProductID, timestamp)
	if err != nil {
		logger.Warn("audio publish failed, continuing without audio",
			slog.String("error", err.Error()))
		return "", "", path
	}

	return narration, url, path
}

// fail compensates recorded side effects and converts the fatal error
// into a failure result. Compensation runs detached from the caller's
// cancellation so cleanup still happens when the run itself was cancelled.
func (s *Service) fail(ctx context.Context, sg *saga, logger *slog.Logger, err error) GenerationResult {
	logger.Error("video generation failed", slog.String("error", err.Error()))
	sg.compensate(context.WithoutCancel(ctx))
	return GenerationResult{Error: err.Error()}
}
