// Package orchestrator runs the per-program scanners as one unit and owns
// the optional order-count stop predicate.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// Runner is the scanner role: loop until the context ends.
type Runner interface {
	Run(ctx context.Context)
}

// Counter is the slice of the analytics store the stop predicate reads.
type Counter interface {
	OrderCount(ctx context.Context, kind models.EventKind) (uint64, error)
}

// Orchestrator drives the scanners concurrently and stops them all when the
// context ends or when every event kind has reached the configured count.
type Orchestrator struct {
	scanners  []Runner
	counts    Counter
	stopAfter uint64
	interval  time.Duration
}

// New creates an orchestrator. stopAfter = 0 disables the count predicate.
func New(counts Counter, stopAfter int, scanners ...Runner) *Orchestrator {
	return &Orchestrator{
		scanners:  scanners,
		counts:    counts,
		stopAfter: uint64(stopAfter),
		interval:  config.StopCheckInterval,
	}
}

// Run blocks until every scanner has stopped. Scanners stop when ctx is
// cancelled or the stop predicate fires; either way all of them have fully
// exited when Run returns, so callers may then close shared stores.
func (o *Orchestrator) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("orchestrator starting",
		"scanners", len(o.scanners),
		"stopAfter", o.stopAfter,
	)

	var wg sync.WaitGroup
	for _, s := range o.scanners {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(s)
	}

	if o.stopAfter > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.watchStopPredicate(ctx, cancel)
		}()
	}

	wg.Wait()
	slog.Info("orchestrator stopped")
}

// watchStopPredicate cancels the run once every event kind has at least
// stopAfter persisted orders. Count failures are logged and retried on the
// next tick.
func (o *Orchestrator) watchStopPredicate(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.predicateMet(ctx) {
				slog.Info("order count target reached, stopping",
					"target", o.stopAfter,
				)
				cancel()
				return
			}
		}
	}
}

func (o *Orchestrator) predicateMet(ctx context.Context) bool {
	for _, kind := range models.AllEventKinds {
		count, err := o.counts.OrderCount(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			slog.Warn("stop predicate count failed",
				"kind", kind,
				"error", err,
			)
			return false
		}
		if count < o.stopAfter {
			return false
		}
	}
	return true
}
