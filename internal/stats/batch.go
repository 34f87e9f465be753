package stats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchReport summarizes a recompute-all run.
type BatchReport struct {
	Users     int           `json:"users"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"-"`
}

// RecomputeAll recomputes every user with at most Options.Workers users in flight.
// A failing user is logged and counted; it never stops the others. The returned
// error is non-nil only when the user list cannot be loaded or ctx ends the run early.
func (e *Engine) RecomputeAll(ctx context.Context) (BatchReport, error) {
	started := time.Now()
	ids, err := e.users.ListIDs(ctx)
	if err != nil {
		return BatchReport{}, fmt.Errorf("list users: %w", err)
	}

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			BatchInFlight.Inc()
			defer BatchInFlight.Dec()

			if err := e.Recompute(ctx, id); err != nil {
				failed.Add(1)
				e.logger.Printf("stats: batch recompute user %s: %v", id, err)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{
		Users:     len(ids),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Elapsed:   time.Since(started),
	}
	RecordBatch(report)
	e.logger.Printf("stats: batch complete (users=%d succeeded=%d failed=%d) in %s",
		report.Users, report.Succeeded, report.Failed, report.Elapsed.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
