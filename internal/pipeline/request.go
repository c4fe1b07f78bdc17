package pipeline

import "time"

// GenerationRequest is the immutable input to a pipeline run.
type GenerationRequest struct {
	ProductID   string `validate:"required"`
	Title       string
	Description string
	Category    string
	ImageURL    string `validate:"required,url"`
	ArtisanID   string `validate:"required"`
	Options     GenerationOptions
}

// GenerationOptions tunes the synthesized video. Zero values are filled
// from DefaultOptions before validation, except IncludeAudio, which is
// taken as given.
type GenerationOptions struct {
	AspectRatio     string `validate:"required,oneof=16:9 9:16 1:1"`
	Resolution      string `validate:"required,oneof=720p 1080p"`
	DurationSeconds int    `validate:"required,gte=1,lte=60"`
	IncludeAudio    bool
}

// DefaultOptions returns the standard generation parameters.
func DefaultOptions() GenerationOptions {
	return GenerationOptions{
		AspectRatio:     "16:9",
		Resolution:      "720p",
		DurationSeconds: 8,
		IncludeAudio:    true,
	}
}

// withDefaults fills unset fields from DefaultOptions.
func (o GenerationOptions) withDefaults() GenerationOptions {
	def := DefaultOptions()
	if o.AspectRatio == "" {
		o.AspectRatio = def.AspectRatio
	}
	if o.Resolution == "" {
		o.Resolution = def.Resolution
	}
	if o.DurationSeconds == 0 {
		o.DurationSeconds = def.DurationSeconds
	}
	return o
}

// GenerationResult is the uniform outcome of a pipeline run. Exactly one
// of the two shapes is populated: the success fields, or Error.
type GenerationResult struct {
	Success bool

	BaseVideoURL string
	PlaybackURL  string
	AudioURL     string
	AudioScript  string
	VideoPrompt  string
	GeneratedAt  time.Time
	Duration     int
	AspectRatio  string
	HasAudio     bool

	Error string
}

// Status returns the terminal video status the caller should apply.
func (r GenerationResult) Status() VideoStatus {
	if r.Success {
		return StatusCompleted
	}
	return StatusFailed
}

// MarketingVideo is the persisted shape callers store per product.
type MarketingVideo struct {
	URL          string    `json:"url"`
	BaseVideoURL string    `json:"baseVideoUrl"`
	AudioURL     *string   `json:"audioUrl"`
	AudioScript  *string   `json:"audioScript"`
	HasAudio     bool      `json:"hasAudio"`
	Prompt       string    `json:"prompt"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Duration     int       `json:"duration"`
	AspectRatio  string    `json:"aspectRatio"`
}

// MarketingVideo converts a successful result into the persisted shape.
// It returns nil for failure results; failed runs leave prior media
// untouched.
func (r GenerationResult) MarketingVideo() *MarketingVideo {
	if !r.Success {
		return nil
	}
	return &MarketingVideo{
		URL:          r.PlaybackURL,
		BaseVideoURL: r.BaseVideoURL,
		AudioURL:     optional(r.AudioURL),
		AudioScript:  optional(r.AudioScript),
		HasAudio:     r.HasAudio,
		Prompt:       r.VideoPrompt,
		GeneratedAt:  r.GeneratedAt,
		Duration:     r.Duration,
		AspectRatio:  r.AspectRatio,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
