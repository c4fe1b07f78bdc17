// Package script generates short narration scripts for product videos.
// Generation degrades to a deterministic template instead of failing:
// the returned script is always usable.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/craftvista/showreel-api/internal/gemini"
	"github.com/craftvista/showreel-api/internal/media"
)

// Soft bounds for the narration length. The model is instructed to aim
// for 20-22 words; scripts outside this range are logged, never rejected.
const (
	minWords = 18
	maxWords = 26
)

// Product carries the fields the script is written from.
type Product struct {
	Title       string
	Description string
	Category    string
	ImageURL    string
}

// Generator produces narration scripts from a product image and metadata.
type Generator struct {
	model   gemini.Client
	fetcher *media.Fetcher
	logger  *slog.Logger
}

// NewGenerator creates a script generator.
func NewGenerator(model gemini.Client, fetcher *media.Fetcher, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		model:   model,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Generate returns a narration script for the product. Any failure along
// the way (image fetch, model error, empty response) falls back to a
// deterministic template built from the product title and category.
func (g *Generator) Generate(ctx context.Context, p Product) string {
	text, err := g.generate(ctx, p)
	if err != nil {
		g.logger.Warn("script generation failed, using fallback",
			slog.String("title", p.Title),
			slog.String("error", err.Error()),
		)
		return Fallback(p)
	}

	if n := wordCount(text); n < minWords || n > maxWords {
		g.logger.Warn("script length outside target range",
			slog.Int("words", n),
			slog.String("title", p.Title),
		)
	}

	return text
}

func (g *Generator) generate(ctx context.Context, p Product) (string, error) {
	data, mimeType, err := g.fetcher.Fetch(ctx, p.ImageURL)
	if err != nil {
		return "", err
	}

	text, err := g.model.GenerateText(ctx, buildPrompt(p), &gemini.Image{
		Data:     data,
		MimeType: mimeType,
	})
	if err != nil {
		return "", err
	}

	return sanitize(text), nil
}

// buildPrompt writes the instruction for the narration model.
func buildPrompt(p Product) string {
	var sb strings.Builder
	sb.WriteString("Write a narration script of 20 to 22 words for a short marketing video of this product.\n")
	sb.WriteString("Tone: warm and inviting, spoken aloud by a narrator.\n")
	sb.WriteString("Do not use the phrase \"handmade by artisan\" or address the maker directly.\n")
	sb.WriteString("Return only the script text, no quotes and no stage directions.\n\n")
	fmt.Fprintf(&sb, "Product: %s\n", p.Title)
	if p.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", p.Category)
	}
	if p.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", p.Description)
	}
	return sb.String()
}

// Fallback returns the deterministic template used when generation fails.
func Fallback(p Product) string {
	category := strings.ToLower(p.Category)
	if category == "" {
		category = "craft"
	}
	return fmt.Sprintf(
		"Discover %s, a one of a kind %s piece. Crafted with care and tradition, it brings warmth and character to your home.",
		p.Title, category,
	)
}

// sanitize strips wrapping quotes and collapses whitespace in model output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")
	return strings.Join(strings.Fields(s), " ")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
