// Package metadata keeps the TMDB snapshots stored on list entries current.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/watchstats/internal/domain"
	"github.com/Clark-Hu/watchstats/internal/repository"
	"github.com/Clark-Hu/watchstats/internal/tmdb"
)

// UserLookup resolves a user id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// EntryStore reads entries and writes their metadata snapshots.
type EntryStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.ListEntry, error)
	UpdateMetadata(ctx context.Context, id string, metadata *domain.MediaMetadata) error
}

// Report summarizes one refresh.
type Report struct {
	Entries  int `json:"entries"`
	Updated  int `json:"updated"`
	NotFound int `json:"notFound"`
	Failed   int `json:"failed"`
}

// Refresher re-fetches metadata for every entry of a user.
type Refresher struct {
	users   UserLookup
	entries EntryStore
	client  tmdb.Client
	workers int
	logger  *log.Logger
}

// NewRefresher builds a refresher that keeps at most workers upstream calls in flight.
func NewRefresher(users UserLookup, entries EntryStore, client tmdb.Client, workers int, logger *log.Logger) *Refresher {
	if logger == nil {
		logger = log.Default()
	}
	if workers <= 0 {
		workers = 8
	}
	return &Refresher{users: users, entries: entries, client: client, workers: workers, logger: logger}
}

// Refresh replaces each entry's snapshot with fresh upstream details. An entry whose
// fetch or write fails keeps its previous snapshot; the failure is counted and logged.
func (r *Refresher) Refresh(ctx context.Context, userID string) (Report, error) {
	started := time.Now()
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Report{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return Report{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	entries, err := r.entries.ListByOwner(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("load entries for user %s: %w", userID, err)
	}

	var updated, notFound, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		entry := entry // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			md, err := r.client.Details(ctx, entry.MediaType, entry.MediaID)
			switch {
			case errors.Is(err, tmdb.ErrNotFound):
				notFound.Add(1)
				return nil
			case err != nil:
				failed.Add(1)
				r.logger.Printf("metadata: fetch %s %s for entry %s: %v", entry.MediaType, entry.MediaID, entry.ID, err)
				return nil
			}
			if err := r.entries.UpdateMetadata(ctx, entry.ID, md); err != nil {
				failed.Add(1)
				r.logger.Printf("metadata: store entry %s: %v", entry.ID, err)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Entries:  len(entries),
		Updated:  int(updated.Load()),
		NotFound: int(notFound.Load()),
		Failed:   int(failed.Load()),
	}
	r.logger.Printf("metadata: refreshed user %s (entries=%d updated=%d not_found=%d failed=%d) in %s",
		userID, report.Entries, report.Updated, report.NotFound, report.Failed, time.Since(started).Round(time.Millisecond))
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
