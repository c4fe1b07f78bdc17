package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"
)

// Static errors for CDN storage operations.
var (
	// ErrCloudNameRequired is returned when the cloud name is not provided.
	ErrCloudNameRequired = errors.New("storage: CDN cloud name is required")
	// ErrCDNKeyRequired is returned when API credentials are not provided.
	ErrCDNKeyRequired = errors.New("storage: CDN API key and secret are required")
	// ErrUploadSourceRequired is returned when neither a local path nor a remote URL is given.
	ErrUploadSourceRequired = errors.New("storage: upload needs a local path or a remote URL")
	// ErrNotProviderURL is returned when a URL was not minted by this provider.
	ErrNotProviderURL = errors.New("storage: URL does not contain an upload segment")
	// ErrCDNRequestFailed is returned when the CDN responds with a non-2xx status.
	ErrCDNRequestFailed = errors.New("storage: CDN request failed")
)

// versionSegment matches the leading delivery version component ("v1712345678").
var versionSegment = regexp.MustCompile(`^v\d+$`)

// CDNStorage is the media CDN implementation of ObjectStorage.
// Delivery URLs are versioned ("/<kind>/upload/v<N>/<folder>/<name>.<ext>")
// and transformations are expressed as URL path steps, so composition
// never re-encodes the underlying assets.
type CDNStorage struct {
	cloudName   string
	apiKey      string
	apiSecret   string
	apiBase     string
	deliveryURL string
	httpClient  *http.Client
	pageSize    int
}

// CDNOption configures a CDNStorage.
type CDNOption func(*CDNStorage)

// WithCDNAPIBase sets a custom API base URL.
func WithCDNAPIBase(u string) CDNOption {
	return func(c *CDNStorage) {
		c.apiBase = strings.TrimSuffix(u, "/")
	}
}

// WithCDNDeliveryURL sets a custom delivery base URL.
func WithCDNDeliveryURL(u string) CDNOption {
	return func(c *CDNStorage) {
		c.deliveryURL = strings.TrimSuffix(u, "/")
	}
}

// WithCDNHTTPClient sets a custom HTTP client.
func WithCDNHTTPClient(hc *http.Client) CDNOption {
	return func(c *CDNStorage) {
		c.httpClient = hc
	}
}

// WithCDNPageSize sets the listing page size.
func WithCDNPageSize(n int) CDNOption {
	return func(c *CDNStorage) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewCDNStorage creates a CDN-backed ObjectStorage.
func NewCDNStorage(cloudName, apiKey, apiSecret string, opts ...CDNOption) (*CDNStorage, error) {
	if cloudName == "" {
		return nil, ErrCloudNameRequired
	}
	if apiKey == "" || apiSecret == "" {
		return nil, ErrCDNKeyRequired
	}

	c := &CDNStorage{
		cloudName:   cloudName,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		apiBase:     "https://api.mediacdn.io/v1",
		deliveryURL: "https://res.mediacdn.io",
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		pageSize:    100,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// uploadResponse is the CDN's answer to an upload request.
type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload publishes a local file or a remote source into the CDN.
// Remote sources are fetched provider-side, so staging output never
// passes through this process.
func (c *CDNStorage) Upload(ctx context.Context, in UploadInput) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/upload", c.apiBase, c.cloudName, in.Kind)
	publicID := in.Name
	if in.Folder != "" {
		publicID = in.Folder + "/" + in.Name
	}

	var req *http.Request
	var err error

	switch {
	case in.RemoteURL != "":
		form := url.Values{}
		form.Set("file", in.RemoteURL)
		form.Set("public_id", publicID)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("storage: create upload request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	case in.LocalPath != "":
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		if err := writer.WriteField("public_id", publicID); err != nil {
			return "", fmt.Errorf("storage: build upload form: %w", err)
		}
		part, err := writer.CreateFormFile("file", path.Base(in.LocalPath))
		if err != nil {
			return "", fmt.Errorf("storage: build upload form: %w", err)
		}
		f, err := os.Open(in.LocalPath) // #nosec G304 - path is provided by trusted caller
		if err != nil {
			return "", fmt.Errorf("storage: open upload source: %w", err)
		}
		_, copyErr := io.Copy(part, f)
		_ = f.Close()
		if copyErr != nil {
			return "", fmt.Errorf("storage: read upload source: %w", copyErr)
		}
		if err := writer.Close(); err != nil {
			return "", fmt.Errorf("storage: build upload form: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
		if err != nil {
			return "", fmt.Errorf("storage: create upload request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

	default:
		return "", ErrUploadSourceRequired
	}

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrCDNRequestFailed, resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("%w: upload returned no URL", ErrCDNRequestFailed)
	}

	return resp.SecureURL, nil
}

// listResponse is one page of the CDN's resource listing.
type listResponse struct {
	Resources []struct {
		PublicID string `json:"public_id"`
	} `json:"resources"`
	NextCursor string `json:"next_cursor"`
}

// List returns one page of stored identifiers of the given kind.
func (c *CDNStorage) List(ctx context.Context, kind Kind, cursor string) (Page, error) {
	endpoint := fmt.Sprintf("%s/%s/resources/%s?max_results=%d", c.apiBase, c.cloudName, kind, c.pageSize)
	if cursor != "" {
		endpoint += "&next_cursor=" + url.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("storage: create list request: %w", err)
	}

	var resp listResponse
	if err := c.do(req, &resp); err != nil {
		return Page{}, err
	}

	page := Page{NextCursor: resp.NextCursor}
	for _, r := range resp.Resources {
		page.IDs = append(page.IDs, r.PublicID)
	}
	return page, nil
}

// deleteRequest is the body of a batched deletion call.
type deleteRequest struct {
	PublicIDs  []string `json:"public_ids"`
	Invalidate bool     `json:"invalidate"`
}

// DeleteBatch removes the identified objects in one call, invalidating
// cached delivery copies. Absent ids are ignored by the provider.
func (c *CDNStorage) DeleteBatch(ctx context.Context, ids []string, kind Kind) error {
	if len(ids) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("%s/%s/resources/%s", c.apiBase, c.cloudName, kind)
	body, err := json.Marshal(deleteRequest{PublicIDs: ids, Invalidate: true})
	if err != nil {
		return fmt.Errorf("storage: marshal delete request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("storage: create delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// TransformedURL builds a delivery URL with the given transformation
// steps applied. Steps are URL path components between the upload marker
// and the identifier; no network call is made.
func (c *CDNStorage) TransformedURL(id string, kind Kind, steps []string) string {
	segments := []string{c.deliveryURL, c.cloudName, string(kind), "upload"}
	segments = append(segments, steps...)
	segments = append(segments, encodeIdentifier(id)+".mp4")
	return strings.Join(segments, "/")
}

// IdentifierFromURL derives the storage identifier from a delivery URL:
// the path after the upload marker, minus the version component and the
// file extension, percent-decoded per segment.
func (c *CDNStorage) IdentifierFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: parse URL: %w", err)
	}

	segments := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")
	marker := -1
	for i, seg := range segments {
		if seg == "upload" {
			marker = i
			break
		}
	}
	if marker < 0 || marker == len(segments)-1 {
		return "", fmt.Errorf("%w: %s", ErrNotProviderURL, rawURL)
	}

	rest := segments[marker+1:]
	if versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotProviderURL, rawURL)
	}

	// Strip the extension from the final segment.
	last := rest[len(rest)-1]
	if dot := strings.LastIndexByte(last, '.'); dot > 0 {
		rest[len(rest)-1] = last[:dot]
	}

	// Decode per segment so special characters in identifiers (quotes,
	// dashes, unicode) round-trip through delivery URLs.
	decoded := make([]string, len(rest))
	for i, seg := range rest {
		d, err := url.PathUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("storage: decode URL segment %q: %w", seg, err)
		}
		decoded[i] = d
	}

	return strings.Join(decoded, "/"), nil
}

// encodeIdentifier percent-encodes an identifier per path segment.
func encodeIdentifier(id string) string {
	segments := strings.Split(id, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// do performs an authenticated request and decodes the JSON response.
func (c *CDNStorage) do(req *http.Request, result interface{}) error {
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: CDN request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("storage: read CDN response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrCDNRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("storage: unmarshal CDN response: %w", err)
		}
	}

	return nil
}

// Compile-time check that CDNStorage implements ObjectStorage.
var _ ObjectStorage = (*CDNStorage)(nil)
