// Package tts converts narration scripts to audio through an external
// speech synthesis provider. Audio is always optional: callers treat
// every error here as "no audio", never as a pipeline failure.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/craftvista/showreel-api/internal/storage"
)

// Static errors for speech synthesis operations.
var (
	// ErrNotConfigured is returned when no API key is configured.
	ErrNotConfigured = errors.New("tts: not configured")
	// ErrRateLimited is returned when the provider responds with 429.
	ErrRateLimited = errors.New("tts: rate limited")
	// ErrUnexpectedContentType is returned when a 2xx response body is not audio.
	// Providers have been seen returning JSON error bodies with status 200.
	ErrUnexpectedContentType = errors.New("tts: unexpected response content type")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("tts: request failed")
)

// Synthesizer converts a script into a local audio file.
type Synthesizer interface {
	// Synthesize renders the script to speech and writes it to ephemeral
	// local storage, returning the file path.
	Synthesize(ctx context.Context, script, productID string, timestamp int64) (string, error)
}

// voiceSettings are the fixed voice parameters sent with every request.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// synthesizeRequest is the provider request body.
type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// HTTPClient is the HTTP implementation of the Synthesizer interface.
type HTTPClient struct {
	apiKey     string
	voiceID    string
	baseURL    string
	httpClient *http.Client
	temp       *storage.TempStore
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL sets a custom base URL for the TTS API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// NewClient creates a new TTS HTTP client. An empty apiKey yields a
// client whose Synthesize always returns ErrNotConfigured, letting the
// pipeline run audio-less without special wiring.
func NewClient(apiKey, voiceID string, temp *storage.TempStore, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		apiKey:     apiKey,
		voiceID:    voiceID,
		baseURL:    "https://api.elevenlabs.io/v1/text-to-speech",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		temp:       temp,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize renders the script with fixed voice parameters and writes
// the audio to the temp store under a (productID, timestamp)-unique name.
func (c *HTTPClient) Synthesize(ctx context.Context, script, productID string, timestamp int64) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	bodyBytes, err := json.Marshal(synthesizeRequest{
		Text:    script,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return "", fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.voiceID, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedContentType, contentType)
	}

	name := fmt.Sprintf("audio_%s_%d.mp3", productID, timestamp)
	path, err := c.temp.Save(ctx, name, resp.Body)
	if err != nil {
		return "", fmt.Errorf("tts: save audio: %w", err)
	}

	return path, nil
}

// Compile-time check that HTTPClient implements Synthesizer.
var _ Synthesizer = (*HTTPClient)(nil)
