// Package publish moves ephemeral pipeline outputs into durable object
// storage under deterministic, collision-free names, and composes the
// playback URL that overlays narration audio onto the published video.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/craftvista/showreel-api/internal/storage"
)

// Destination folders, kind-rooted so both storage backends can list by kind.
const (
	videoFolder = "videos/products"
	audioFolder = "videos/audio"
)

// Publisher uploads pipeline outputs into durable storage.
type Publisher struct {
	store storage.ObjectStorage
}

// NewPublisher creates a Publisher backed by the given storage.
func NewPublisher(store storage.ObjectStorage) *Publisher {
	return &Publisher{store: store}
}

// assetName builds the deterministic object name for a product's asset.
// The timestamp component makes regenerations publish fresh objects
// instead of overwriting prior ones.
func assetName(productID string, timestamp int64) string {
	return fmt.Sprintf("product_%s_%d", productID, timestamp)
}

// PublishVideo uploads the staged video output into durable storage and
// returns its durable URL. Failures here are fatal for the pipeline.
func (p *Publisher) PublishVideo(ctx context.Context, stagingURI, productID string, timestamp int64) (string, error) {
	url, err := p.store.Upload(ctx, storage.UploadInput{
		RemoteURL: stagingURI,
		Folder:    videoFolder,
		Name:      assetName(productID, timestamp),
		Format:    "mp4",
		Kind:      storage.KindVideo,
	})
	if err != nil {
		return "", fmt.Errorf("publish video: %w", err)
	}
	return url, nil
}

// PublishAudio uploads a local narration file into durable storage and
// returns its durable URL. Callers treat failures as non-fatal.
func (p *Publisher) PublishAudio(ctx context.Context, localPath, productID string, timestamp int64) (string, error) {
	url, err := p.store.Upload(ctx, storage.UploadInput{
		LocalPath: localPath,
		Folder:    audioFolder,
		Name:      assetName(productID, timestamp),
		Format:    "mp3",
		Kind:      storage.KindVideo,
	})
	if err != nil {
		return "", fmt.Errorf("publish audio: %w", err)
	}
	return url, nil
}

// Composer derives playback URLs that overlay audio onto video without
// re-encoding either asset.
type Composer struct {
	store storage.ObjectStorage
}

// NewComposer creates a Composer backed by the given storage.
func NewComposer(store storage.ObjectStorage) *Composer {
	return &Composer{store: store}
}

// PlaybackURL builds a delivery URL that plays the video with the audio
// overlaid. It derives both storage identifiers from the durable URLs;
// if either derivation fails the caller falls back to the base video URL.
func (c *Composer) PlaybackURL(videoURL, audioURL string) (string, error) {
	videoID, err := c.store.IdentifierFromURL(videoURL)
	if err != nil {
		return "", fmt.Errorf("compose: video identifier: %w", err)
	}
	audioID, err := c.store.IdentifierFromURL(audioURL)
	if err != nil {
		return "", fmt.Errorf("compose: audio identifier: %w", err)
	}

	steps := []string{
		"l_video:" + layerRef(audioID),
		"fl_layer_apply",
	}
	return c.store.TransformedURL(videoID, storage.KindVideo, steps), nil
}

// layerRef encodes an identifier as an overlay layer reference, which
// uses ':' in place of '/'.
func layerRef(id string) string {
	return strings.ReplaceAll(id, "/", ":")
}
