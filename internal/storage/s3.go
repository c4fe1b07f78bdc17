package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotBucketURL is returned when a URL does not belong to the configured bucket.
var ErrNotBucketURL = errors.New("storage: URL does not belong to the configured bucket")

// S3Config holds the configuration for S3-backed storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage is the S3 implementation of ObjectStorage. Keys are laid out
// under kind-rooted prefixes ("videos/", "images/") so listings by kind
// stay cheap. S3 has no URL transformation pipeline, so TransformedURL
// returns the plain object URL and composed playback falls back to the
// base video.
type S3Storage struct {
	client     *s3.Client
	httpClient *http.Client
	bucket     string
	region     string
	pageSize   int32
}

// NewS3Storage creates an S3-backed ObjectStorage.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client:     s3.NewFromConfig(awsCfg, clientOpts...),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		pageSize:   1000,
	}, nil
}

// Upload publishes a local file or a remote source into the bucket and
// returns the object URL. Remote sources are streamed through this
// process since S3 cannot fetch them itself.
func (s *S3Storage) Upload(ctx context.Context, in UploadInput) (string, error) {
	key := fmt.Sprintf("%s/%s.%s", in.Folder, in.Name, in.Format)

	var body io.Reader
	switch {
	case in.RemoteURL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.RemoteURL, nil)
		if err != nil {
			return "", fmt.Errorf("storage: create staging fetch request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("storage: fetch staging source: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("storage: fetch staging source: unexpected status %d", resp.StatusCode)
		}
		body = resp.Body

	case in.LocalPath != "":
		f, err := os.Open(in.LocalPath) // #nosec G304 - path is provided by trusted caller
		if err != nil {
			return "", fmt.Errorf("storage: open upload source: %w", err)
		}
		defer func() { _ = f.Close() }()
		body = f

	default:
		return "", ErrUploadSourceRequired
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload to S3: %w", err)
	}

	return s.objectURL(key), nil
}

// List returns one page of object keys under the kind's prefix.
func (s *S3Storage) List(ctx context.Context, kind Kind, cursor string) (Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(string(kind) + "s/"),
		MaxKeys: aws.Int32(s.pageSize),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return Page{}, fmt.Errorf("storage: list S3 objects: %w", err)
	}

	page := Page{}
	for _, obj := range out.Contents {
		page.IDs = append(page.IDs, aws.ToString(obj.Key))
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextCursor = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

// DeleteBatch removes the identified objects in one DeleteObjects call.
// Missing keys are deleted successfully by S3 semantics.
func (s *S3Storage) DeleteBatch(ctx context.Context, ids []string, _ Kind) error {
	if len(ids) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(id)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("storage: delete S3 objects: %w", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("storage: delete S3 objects: %d failed, first: %s %s",
			len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
	}

	return nil
}

// TransformedURL returns the plain object URL; S3 does not transform on
// delivery, so the steps are ignored.
func (s *S3Storage) TransformedURL(id string, _ Kind, _ []string) string {
	return s.objectURL(id)
}

// IdentifierFromURL derives the object key from an object URL.
func (s *S3Storage) IdentifierFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: parse URL: %w", err)
	}
	if !strings.HasPrefix(u.Host, s.bucket+".") {
		return "", fmt.Errorf("%w: %s", ErrNotBucketURL, rawURL)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrNotBucketURL, rawURL)
	}
	return key, nil
}

// objectURL builds the canonical object URL for a key.
func (s *S3Storage) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Compile-time check that S3Storage implements ObjectStorage.
var _ ObjectStorage = (*S3Storage)(nil)
