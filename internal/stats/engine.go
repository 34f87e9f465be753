package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Clark-Hu/watchstats/internal/domain"
	"github.com/Clark-Hu/watchstats/internal/repository"
)

// UserSource looks up accounts.
type UserSource interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// EntrySource loads a user's list entries.
type EntrySource interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.ListEntry, error)
}

// Writer replaces a user's stored rollups.
type Writer interface {
	Replace(ctx context.Context, userID string, overviews []domain.OverviewStat, others []domain.OtherStat) error
}

// Options controls the engine.
type Options struct {
	RankLimit   int
	SampleLimit int
	Workers     int
	UserTimeout time.Duration
	Scorer      Scorer
	Logger      *log.Logger
}

// Engine recomputes rollups for one user or for everyone.
type Engine struct {
	users   UserSource
	entries EntrySource
	writer  Writer
	opts    Options
	logger  *log.Logger

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight is one shared recompute of a user. Its context outlives any single
// caller and is cancelled once every waiting caller has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewEngine wires an engine to its collaborators.
func NewEngine(users UserSource, entries EntrySource, writer Writer, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.RankLimit <= 0 {
		opts.RankLimit = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 16
	}
	return &Engine{
		users:   users,
		entries: entries,
		writer:  writer,
		opts:    opts,
		logger:  logger,
		flights: make(map[string]*flight),
	}
}

// NewEngineFromRepository builds an engine on top of the Postgres repositories.
func NewEngineFromRepository(repo *repository.Repository, opts Options) *Engine {
	return NewEngine(repo.Users, repo.Entries, repo.Stats, opts)
}

// Recompute rebuilds and replaces the rollups of one user. Concurrent calls for the
// same user share a single run until that run has loaded the user's entries; later
// callers start a fresh run so they never receive a result built from older entries.
// Cancelling ctx releases only this caller.
func (e *Engine) Recompute(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	f := e.flights[userID]
	if f == nil {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: runCtx, cancel: cancel}
		e.flights[userID] = f
	}
	f.waiters++
	ch := e.group.DoChan(userID, func() (any, error) {
		defer e.detach(userID, f)
		return nil, e.recompute(f.ctx, userID, func() { e.detach(userID, f) })
	})
	e.mu.Unlock()

	defer e.leave(userID, f)
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detach stops new callers from joining f.
func (e *Engine) detach(userID string, f *flight) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detachLocked(userID, f)
}

func (e *Engine) detachLocked(userID string, f *flight) {
	if e.flights[userID] == f {
		delete(e.flights, userID)
		e.group.Forget(userID)
	}
}

func (e *Engine) leave(userID string, f *flight) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		e.detachLocked(userID, f)
	}
}

func (e *Engine) recompute(ctx context.Context, userID string, loaded func()) (err error) {
	started := time.Now()
	skipped := 0
	defer func() {
		RecordRecompute(outcome(err), skipped, time.Since(started))
	}()

	if e.opts.UserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.UserTimeout)
		defer cancel()
	}

	if _, err := e.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return fmt.Errorf("load user %s: %w", userID, err)
	}

	entries, err := e.entries.ListByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("load entries for user %s: %w", userID, err)
	}
	loaded()

	res := Compute(userID, entries, ComputeOptions{
		RankLimit:   e.opts.RankLimit,
		SampleLimit: e.opts.SampleLimit,
		Scorer:      e.opts.Scorer,
	})
	skipped = len(res.Skipped)
	for _, entryErr := range res.Skipped {
		e.logger.Printf("stats: skipping entry for user %s: %v", userID, entryErr)
	}

	// nothing has been written yet, so a cancelled run leaves the old rollups intact
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.writer.Replace(ctx, userID, res.Overviews, res.Others); err != nil {
		return &PersistError{UserID: userID, Err: err}
	}

	e.logger.Printf("stats: recomputed user %s (entries=%d skipped=%d ranked=%d) in %s",
		userID, res.Folded, skipped, len(res.Others), time.Since(started).Round(time.Millisecond))
	return nil
}

func outcome(err error) string {
	var persistErr *PersistError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.As(err, &persistErr):
		return "persist_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
