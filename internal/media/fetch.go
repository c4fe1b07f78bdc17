// Package media fetches source images for the generation pipeline.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyImage is returned when the source responds with an empty body.
var ErrEmptyImage = errors.New("media: empty image body")

// maxImageBytes bounds the download size; product photos beyond this are
// rejected rather than buffered.
const maxImageBytes = 20 << 20

// Fetcher downloads source images over HTTP.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates an image fetcher. A nil client uses a default with
// a 30 second timeout.
func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{httpClient: httpClient}
}

// Fetch downloads the image at url and returns its bytes and mime type.
// Sources occasionally misreport content types (octet-stream, text/html
// from CDN redirect pages), so anything that is not image/* is reported
// as image/jpeg, which the downstream providers accept for product photos.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("media: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media: fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("media: fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("media: read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	return data, mimeType, nil
}
