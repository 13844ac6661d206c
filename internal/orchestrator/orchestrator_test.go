package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/models"
)

type blockingRunner struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (r *blockingRunner) Run(ctx context.Context) {
	r.started.Add(1)
	<-ctx.Done()
	r.stopped.Add(1)
}

type fakeCounter struct {
	mu        sync.Mutex
	created   uint64
	fulfilled uint64
	err       error
}

func (f *fakeCounter) set(created, fulfilled uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created, f.fulfilled, f.err = created, fulfilled, err
}

func (f *fakeCounter) OrderCount(_ context.Context, kind models.EventKind) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if kind == models.KindOrderCreated {
		return f.created, nil
	}
	return f.fulfilled, nil
}

func runAndWait(t *testing.T, o *Orchestrator, ctx context.Context) chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()
	return done
}

func TestRun_StopsAllScannersOnCancel(t *testing.T) {
	a, b := &blockingRunner{}, &blockingRunner{}
	o := New(&fakeCounter{}, 0, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAndWait(t, o, ctx)

	deadline := time.Now().Add(time.Second)
	for a.started.Load() == 0 || b.started.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scanners did not start")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if a.stopped.Load() != 1 || b.stopped.Load() != 1 {
		t.Errorf("stopped = (%d, %d), want both scanners stopped before Run returns",
			a.stopped.Load(), b.stopped.Load())
	}
}

func TestRun_StopPredicateCancelsScanners(t *testing.T) {
	counts := &fakeCounter{}
	counts.set(5, 2, nil)

	a := &blockingRunner{}
	o := New(counts, 5, a)
	o.interval = 5 * time.Millisecond

	done := runAndWait(t, o, context.Background())

	// Only created has reached the target; the orchestrator must keep going.
	select {
	case <-done:
		t.Fatal("Run() returned before both kinds reached the target")
	case <-time.After(50 * time.Millisecond):
	}

	counts.set(5, 5, nil)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after both counts reached the target")
	}

	if a.stopped.Load() != 1 {
		t.Errorf("scanner stopped = %d, want 1", a.stopped.Load())
	}
}

func TestRun_PredicateSurvivesCountErrors(t *testing.T) {
	counts := &fakeCounter{}
	counts.set(0, 0, errors.New("analytics store down"))
	a := &blockingRunner{}
	o := New(counts, 1, a)
	o.interval = 5 * time.Millisecond

	done := runAndWait(t, o, context.Background())

	// Count failures must not stop the run.
	select {
	case <-done:
		t.Fatal("Run() returned on count failure")
	case <-time.After(50 * time.Millisecond):
	}

	counts.set(1, 1, nil)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after counts recovered")
	}
}

func TestRun_ZeroTargetDisablesPredicate(t *testing.T) {
	counts := &fakeCounter{}
	counts.set(100, 100, nil)

	a := &blockingRunner{}
	o := New(counts, 0, a)
	o.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := runAndWait(t, o, ctx)

	select {
	case <-done:
		t.Fatal("Run() stopped although the predicate is disabled")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-done
}
