// Package storage provides ephemeral local storage and the durable
// object storage port used for published media. Two implementations of
// the port exist: a media CDN (versioned delivery URLs, URL-based
// transformations) and S3. Identifier derivation from delivery URLs is
// provider-specific and therefore part of the port.
package storage

import "context"

// Kind is the resource kind an object is stored under.
type Kind string

const (
	// KindImage covers product, profile and story images.
	KindImage Kind = "image"
	// KindVideo covers published videos and narration audio tracks
	// (audio assets ride the video resource kind).
	KindVideo Kind = "video"
)

// UploadInput describes one object to publish into durable storage.
// Exactly one of LocalPath and RemoteURL must be set.
type UploadInput struct {
	// LocalPath is a path on the local filesystem.
	LocalPath string
	// RemoteURL is a remote source the provider fetches directly,
	// e.g. a staging location produced by the video synthesizer.
	RemoteURL string
	// Folder is the destination folder, kind-rooted ("videos/products").
	Folder string
	// Name is the object name without extension. Callers are expected
	// to make it unique (a timestamp component) so uploads never overwrite.
	Name string
	// Format is the file format ("mp4", "mp3", "jpg").
	Format string
	// Kind is the resource kind to store under.
	Kind Kind
}

// Page is one page of a storage listing.
type Page struct {
	// IDs are the storage identifiers on this page.
	IDs []string
	// NextCursor is the cursor for the next page, empty when drained.
	NextCursor string
}

// ObjectStorage is the durable storage port.
type ObjectStorage interface {
	// Upload publishes an object and returns its durable URL.
	Upload(ctx context.Context, in UploadInput) (string, error)

	// List returns one page of identifiers of the given kind.
	// Pass the previous page's NextCursor to continue; an empty
	// NextCursor means the listing is drained.
	List(ctx context.Context, kind Kind, cursor string) (Page, error)

	// DeleteBatch removes the identified objects in one call,
	// invalidating any caches. Deleting an absent id is not an error.
	DeleteBatch(ctx context.Context, ids []string, kind Kind) error

	// TransformedURL builds a delivery URL applying the given
	// transformation steps. Pure; providers without URL transformations
	// return the plain object URL.
	TransformedURL(id string, kind Kind, steps []string) string

	// IdentifierFromURL derives the storage identifier from a durable
	// URL. Pure. Returns an error for URLs not minted by this provider.
	IdentifierFromURL(rawURL string) (string, error)
}
