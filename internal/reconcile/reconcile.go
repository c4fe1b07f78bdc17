// Package reconcile removes orphaned media from durable storage:
// objects no longer referenced by any persisted record. The job is
// idempotent and safe to re-run; already-deleted objects simply vanish
// from the next listing.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/craftvista/showreel-api/internal/storage"
)

// ReferenceSource yields the media URLs one record type currently
// references (product images and videos, profile images, story covers,
// user avatars).
type ReferenceSource interface {
	Name() string
	URLs(ctx context.Context) ([]string, error)
}

// Job computes stored minus referenced identifiers and deletes the
// difference, per resource kind.
type Job struct {
	store   storage.ObjectStorage
	sources []ReferenceSource
	logger  *slog.Logger
}

// NewJob creates a reconciliation job over the given storage and
// reference sources.
func NewJob(store storage.ObjectStorage, sources []ReferenceSource, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:   store,
		sources: sources,
		logger:  logger,
	}
}

// Run performs one reconciliation sweep. A reference source failure
// aborts the whole run: deleting against an incomplete reference set
// would destroy live media. Failures within one resource kind (listing
// page or batch delete) are logged and isolated, so the other kind
// still completes.
func (j *Job) Run(ctx context.Context) error {
	referenced, err := j.referencedIdentifiers(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: collect referenced media: %w", err)
	}

	for _, kind := range []storage.Kind{storage.KindImage, storage.KindVideo} {
		stored, err := j.storedIdentifiers(ctx, kind)
		if err != nil {
			j.logger.Warn("listing failed, skipping kind",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			continue
		}

		orphans := difference(stored, referenced)
		if len(orphans) == 0 {
			j.logger.Info("no orphans found",
				slog.String("kind", string(kind)),
				slog.Int("stored", len(stored)),
			)
			continue
		}

		if err := j.store.DeleteBatch(ctx, orphans, kind); err != nil {
			j.logger.Warn("orphan deletion failed",
				slog.String("kind", string(kind)),
				slog.Int("orphans", len(orphans)),
				slog.String("error", err.Error()),
			)
			continue
		}

		j.logger.Info("orphans deleted",
			slog.String("kind", string(kind)),
			slog.Int("stored", len(stored)),
			slog.Int("referenced", len(referenced)),
			slog.Int("deleted", len(orphans)),
		)
	}

	return nil
}

// referencedIdentifiers unions the media URLs of every source and
// derives their storage identifiers. Unparseable URLs are logged and
// skipped, never fatal.
func (j *Job) referencedIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	for _, src := range j.sources {
		urls, err := src.URLs(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		for _, u := range urls {
			if u == "" {
				continue
			}
			id, err := j.store.IdentifierFromURL(u)
			if err != nil {
				j.logger.Warn("skipping unparseable media URL",
					slog.String("source", src.Name()),
					slog.String("url", u),
				)
				continue
			}
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// storedIdentifiers drains the storage listing for one kind.
func (j *Job) storedIdentifiers(ctx context.Context, kind storage.Kind) ([]string, error) {
	var ids []string
	cursor := ""
	for {
		page, err := j.store.List(ctx, kind, cursor)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page.IDs...)
		if page.NextCursor == "" {
			return ids, nil
		}
		cursor = page.NextCursor
	}
}

// difference returns the stored identifiers absent from referenced,
// sorted for deterministic batches.
func difference(stored []string, referenced map[string]struct{}) []string {
	var orphans []string
	seen := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		if _, ok := referenced[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		orphans = append(orphans, id)
	}
	sort.Strings(orphans)
	return orphans
}
