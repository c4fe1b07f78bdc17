// Package prompt generates cinematic scene descriptions for the video
// synthesis provider. Like the script generator, it degrades to a
// deterministic template instead of failing.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/craftvista/showreel-api/internal/gemini"
	"github.com/craftvista/showreel-api/internal/media"
)

// Product carries the fields the scene description is written from.
type Product struct {
	Title       string
	Description string
	Category    string
	ImageURL    string
}

// Generator produces video synthesis prompts from a product image and metadata.
type Generator struct {
	model   gemini.Client
	fetcher *media.Fetcher
	logger  *slog.Logger
}

// NewGenerator creates a prompt generator.
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

// Generate returns a cinematic prompt for the product. Any failure falls
// back to a deterministic template built from the title and category.
func (g *Generator) Generate(ctx context.Context, p Product) string {
	text, err := g.generate(ctx, p)
	if err != nil {
		g.logger.Warn("prompt generation failed, using fallback",
			slog.String("title", p.Title),
			slog.String("error", err.Error()),
		)
		return Fallback(p)
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

	return strings.TrimSpace(text), nil
}

// buildPrompt writes the instruction for the scene description model.
func buildPrompt(p Product) string {
	var sb strings.Builder
	sb.WriteString("Write a cinematic scene description of 120 to 150 words for a short product video.\n")
	sb.WriteString("Describe the product's material and texture, the lighting of the scene, and a slow camera movement that shows the product from multiple angles.\n")
	sb.WriteString("The scene should feel premium and handcrafted. Return only the description.\n\n")
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
		category = "artisan"
	}
	return fmt.Sprintf(
		"A slow cinematic shot of %s, a %s piece, resting on a rustic wooden table. "+
			"Soft golden hour light falls across its surface, bringing out the texture of the material. "+
			"The camera glides in a gentle arc around the piece, starting wide and easing into a close-up of its finest details. "+
			"Dust motes drift through warm backlight. The background stays softly out of focus, keeping every eye on the craftsmanship.",
		p.Title, category,
	)
}
