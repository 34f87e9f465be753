// Package scheduler runs the periodic recompute of every user's rollups.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Clark-Hu/watchstats/internal/stats"
)

// Batch recomputes every user.
type Batch interface {
	RecomputeAll(ctx context.Context) (stats.BatchReport, error)
}

// Scheduler triggers a batch recompute on a cron schedule. A run that is still in
// progress when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	batch  Batch
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (standard five-field cron syntax or descriptors such as "@hourly").
func New(spec string, batch Batch, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
	))
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, batch: batch, logger: logger, ctx: ctx, cancel: cancel}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("parse recompute schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Printf("scheduler: started, next recompute at %s", s.Next().Format(time.RFC3339))
}

// Next returns the time of the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop cancels an in-flight run and waits for it to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Printf("scheduler: stop timed out waiting for running recompute")
	}
}

func (s *Scheduler) run() {
	report, err := s.batch.RecomputeAll(s.ctx)
	if err != nil {
		s.logger.Printf("scheduler: recompute-all failed after %d/%d users: %v",
			report.Succeeded+report.Failed, report.Users, err)
	}
}
