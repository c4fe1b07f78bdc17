// Package videogen drives the long-running video synthesis job: submit,
// fixed-cadence polling and best-effort staging cleanup. Polling uses a
// fixed interval rather than backoff: the operation's duration is roughly
// known in advance, so a fixed cadence bounds total wait time predictably.
package videogen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Static errors for video synthesis operations.
var (
	// ErrModelRequired is returned when the model identifier is not provided.
	ErrModelRequired = errors.New("videogen: model is required")
	// ErrSubmitRejected is returned when the provider rejects the submission.
	ErrSubmitRejected = errors.New("videogen: submission rejected")
	// ErrNoOperation is returned when the submit response contains no operation name.
	ErrNoOperation = errors.New("videogen: submit returned no operation name")
	// ErrPollTimeout is returned when the operation does not finish within the attempt budget.
	ErrPollTimeout = errors.New("videogen: polling timed out")
	// ErrOperationFailed is returned when the operation finishes with an explicit error.
	ErrOperationFailed = errors.New("videogen: operation failed")
	// ErrNoOutput is returned when the operation finishes without an output location.
	ErrNoOutput = errors.New("videogen: operation finished with no output")
	// ErrBadStagingURI is returned when a staging URI cannot be parsed.
	ErrBadStagingURI = errors.New("videogen: malformed staging URI")
)

// Operation is the opaque handle of a submitted synthesis job.
type Operation struct {
	Name string
}

// SubmitInput contains parameters for submitting a synthesis job.
type SubmitInput struct {
	// Prompt is the cinematic scene description.
	Prompt string
	// ImageBytes is the conditioning product image.
	ImageBytes []byte
	// MimeType is the image mime type.
	MimeType string
	// AspectRatio e.g. "16:9".
	AspectRatio string
	// DurationSeconds is the requested clip length.
	DurationSeconds int
	// Resolution e.g. "720p".
	Resolution string
	// StorageURI is the staging location the provider writes raw output to.
	StorageURI string
}

// Client defines the interface for the video synthesis provider.
type Client interface {
	// Submit starts an asynchronous synthesis job.
	Submit(ctx context.Context, token string, in SubmitInput) (Operation, error)

	// Poll waits for the operation to finish and returns the staging
	// location of the output.
	Poll(ctx context.Context, token string, op Operation) (string, error)

	// DeleteStaging removes a staging object. Best effort; callers
	// treat failures as warnings.
	DeleteStaging(ctx context.Context, token string, stagingURI string) error
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	model        string
	baseURL      string
	storageURL   string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL sets a custom base URL for the synthesis API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithStorageBaseURL sets a custom base URL for the staging storage API.
func WithStorageBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.storageURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithPollInterval sets the fixed interval between status checks.
func WithPollInterval(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		if d > 0 {
			hc.pollInterval = d
		}
	}
}

// WithMaxAttempts sets the polling attempt budget.
func WithMaxAttempts(n int) ClientOption {
	return func(hc *HTTPClient) {
		if n > 0 {
			hc.maxAttempts = n
		}
	}
}

// NewClient creates a new synthesis HTTP client for the given model.
func NewClient(model string, opts ...ClientOption) (*HTTPClient, error) {
	if model == "" {
		return nil, ErrModelRequired
	}

	c := &HTTPClient{
		model:        model,
		baseURL:      "https://us-central1-aiplatform.googleapis.com/v1",
		storageURL:   "https://storage.googleapis.com/storage/v1",
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 10 * time.Second,
		maxAttempts:  60,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// request/response shapes for the long-running prediction endpoints.

type submitRequest struct {
	Instances  []submitInstance `json:"instances"`
	Parameters submitParameters `json:"parameters"`
}

type submitInstance struct {
	Prompt string       `json:"prompt"`
	Image  *submitImage `json:"image,omitempty"`
}

type submitImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type submitParameters struct {
	AspectRatio     string `json:"aspectRatio"`
	DurationSeconds int    `json:"durationSeconds"`
	Resolution      string `json:"resolution,omitempty"`
	SampleCount     int    `json:"sampleCount"`
	AddWatermark    bool   `json:"addWatermark"`
	StorageURI      string `json:"storageUri"`
}

type submitResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type operationResponse struct {
	Done     bool `json:"done"`
	Response *struct {
		Videos []struct {
			GCSURI string `json:"gcsUri"`
		} `json:"videos"`
	} `json:"response"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Submit starts an asynchronous synthesis job with the image as
// conditioning input and returns the operation handle.
func (c *HTTPClient) Submit(ctx context.Context, token string, in SubmitInput) (Operation, error) {
	body := submitRequest{
		Instances: []submitInstance{{
			Prompt: in.Prompt,
			Image: &submitImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(in.ImageBytes),
				MimeType:           in.MimeType,
			},
		}},
		Parameters: submitParameters{
			AspectRatio:     in.AspectRatio,
			DurationSeconds: in.DurationSeconds,
			Resolution:      in.Resolution,
			SampleCount:     1,
			AddWatermark:    false,
			StorageURI:      in.StorageURI,
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return Operation{}, fmt.Errorf("videogen: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/publishers/google/models/%s:predictLongRunning", c.baseURL, c.model)

	var resp submitResponse
	if err := c.do(ctx, token, endpoint, bodyBytes, &resp); err != nil {
		return Operation{}, fmt.Errorf("%w: %w", ErrSubmitRejected, err)
	}
	if resp.Error != nil {
		return Operation{}, fmt.Errorf("%w: %s", ErrSubmitRejected, resp.Error.Message)
	}
	if resp.Name == "" {
		return Operation{}, ErrNoOperation
	}

	return Operation{Name: resp.Name}, nil
}

// Poll checks the operation at a fixed cadence until it reports done or
// the attempt budget is exhausted. The first check happens immediately;
// each subsequent one waits pollInterval, honoring ctx cancellation.
func (c *HTTPClient) Poll(ctx context.Context, token string, op Operation) (string, error) {
	endpoint := fmt.Sprintf("%s/publishers/google/models/%s:fetchPredictOperation", c.baseURL, c.model)
	bodyBytes, err := json.Marshal(map[string]string{"operationName": op.Name})
	if err != nil {
		return "", fmt.Errorf("videogen: marshal request: %w", err)
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("videogen: polling cancelled: %w", ctx.Err())
			case <-time.After(c.pollInterval):
			}
		}

		var resp operationResponse
		if err := c.do(ctx, token, endpoint, bodyBytes, &resp); err != nil {
			return "", err
		}

		if !resp.Done {
			continue
		}
		if resp.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrOperationFailed, resp.Error.Message)
		}
		if resp.Response == nil || len(resp.Response.Videos) == 0 || resp.Response.Videos[0].GCSURI == "" {
			return "", ErrNoOutput
		}
		return resp.Response.Videos[0].GCSURI, nil
	}

	return "", fmt.Errorf("%w after %d attempts", ErrPollTimeout, c.maxAttempts)
}

// DeleteStaging removes the staging object behind a gs:// URI.
func (c *HTTPClient) DeleteStaging(ctx context.Context, token string, stagingURI string) error {
	bucket, object, err := splitStagingURI(stagingURI)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/b/%s/o/%s", c.storageURL, bucket, url.PathEscape(object))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("videogen: create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("videogen: delete staging object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	// 404 means the object is already gone; deletion stays idempotent.
	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("videogen: delete staging object: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// splitStagingURI splits "gs://bucket/path/to/object" into bucket and object.
func splitStagingURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrBadStagingURI, uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %s", ErrBadStagingURI, uri)
	}
	return bucket, object, nil
}

// do performs a bearer-authenticated POST and decodes the JSON response.
func (c *HTTPClient) do(ctx context.Context, token, endpoint string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("videogen: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("videogen: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("videogen: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("videogen: request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("videogen: unmarshal response: %w", err)
		}
	}

	return nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
