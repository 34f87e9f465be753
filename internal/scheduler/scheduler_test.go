package scheduler

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Clark-Hu/watchstats/internal/stats"
)

type countingBatch struct {
	runs    atomic.Int32
	blocked chan struct{}
}

func (b *countingBatch) RecomputeAll(ctx context.Context) (stats.BatchReport, error) {
	b.runs.Add(1)
	if b.blocked != nil {
		select {
		case <-b.blocked:
		case <-ctx.Done():
			return stats.BatchReport{}, ctx.Err()
		}
	}
	return stats.BatchReport{}, nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestNewRejectsInvalidSpec(t *testing.T) {
	if _, err := New("every tuesday", &countingBatch{}, quiet()); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestSchedulerRunsBatch(t *testing.T) {
	batch := &countingBatch{}
	s, err := New("@every 1s", batch, quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	if s.Next().IsZero() {
		t.Fatalf("expected a next run time after Start")
	}

	deadline := time.Now().Add(3 * time.Second)
	for batch.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if batch.runs.Load() == 0 {
		t.Fatalf("batch never ran")
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	batch := &countingBatch{blocked: make(chan struct{})}
	s, err := New("@every 1s", batch, quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for batch.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// spans at least one more tick
	time.Sleep(1500 * time.Millisecond)

	if got := batch.runs.Load(); got != 1 {
		t.Fatalf("runs while first is blocked = %d, want 1", got)
	}

	// Stop cancels the blocked run
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Fatalf("stop did not wait for the cancelled run to return")
	}
}
