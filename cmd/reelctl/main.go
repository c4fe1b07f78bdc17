// Package main provides reelctl, a CLI for one-off video generation runs
// and manual orphan cleanup sweeps. Scheduling stays with the caller.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/craftvista/showreel-api/internal/bootstrap"
	"github.com/craftvista/showreel-api/internal/config"
	"github.com/craftvista/showreel-api/internal/pipeline"
	"github.com/craftvista/showreel-api/internal/reconcile"
)

var errUsage = errors.New("usage: reelctl <generate|cleanup> [flags]")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Optional; environment variables win over .env entries.
	_ = godotenv.Load()

	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "generate":
		return runGenerate(ctx, args[1:], cfg, logger)
	case "cleanup":
		return runCleanup(ctx, args[1:], cfg, logger)
	default:
		return errUsage
	}
}

func runGenerate(ctx context.Context, args []string, cfg *config.Config, logger *slog.Logger) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	productID := fs.String("product", "", "product id (required)")
	title := fs.String("title", "", "product title")
	description := fs.String("description", "", "product description")
	category := fs.String("category", "", "product category")
	imageURL := fs.String("image", "", "source image URL (required)")
	artisanID := fs.String("artisan", "", "artisan id (required)")
	aspectRatio := fs.String("aspect", "", "aspect ratio (16:9, 9:16, 1:1)")
	resolution := fs.String("resolution", "", "resolution (720p, 1080p)")
	duration := fs.Int("duration", 0, "clip length in seconds")
	noAudio := fs.Bool("no-audio", false, "skip narration audio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := bootstrap.NewDependencies(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	opts := pipeline.DefaultOptions()
	if *aspectRatio != "" {
		opts.AspectRatio = *aspectRatio
	}
	if *resolution != "" {
		opts.Resolution = *resolution
	}
	if *duration != 0 {
		opts.DurationSeconds = *duration
	}
	opts.IncludeAudio = !*noAudio

	result := deps.Pipeline.Generate(ctx, pipeline.GenerationRequest{
		ProductID:   *productID,
		Title:       *title,
		Description: *description,
		Category:    *category,
		ImageURL:    *imageURL,
		ArtisanID:   *artisanID,
		Options:     opts,
	})

	out := struct {
		Success        bool                     `json:"success"`
		VideoStatus    pipeline.VideoStatus     `json:"videoStatus"`
		MarketingVideo *pipeline.MarketingVideo `json:"marketingVideo,omitempty"`
		Error          string                   `json:"error,omitempty"`
	}{
		Success:        result.Success,
		VideoStatus:    result.Status(),
		MarketingVideo: result.MarketingVideo(),
		Error:          result.Error,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if !result.Success {
		return errors.New("generation failed")
	}
	return nil
}

func runCleanup(ctx context.Context, args []string, cfg *config.Config, logger *slog.Logger) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	refsPath := fs.String("refs", "", "file with referenced media URLs, one per line (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *refsPath == "" {
		return errors.New("cleanup: -refs is required")
	}

	deps, err := bootstrap.NewDependencies(cfg, logger, []reconcile.ReferenceSource{
		fileSource{path: *refsPath},
	})
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	return deps.Reconciler.Run(ctx)
}

// fileSource reads referenced media URLs from a file, one per line.
// Blank lines and '#' comments are skipped.
type fileSource struct {
	path string
}

func (f fileSource) Name() string { return "file:" + f.path }

func (f fileSource) URLs(_ context.Context) ([]string, error) {
	file, err := os.Open(f.path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
