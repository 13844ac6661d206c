package checkpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// CoalescedStore sits in front of a Store and bounds persistence to at most
// one write per interval per program. Intermediate windows are safe to drop:
// within a session `to` only moves forward and `from` only moves backward, so
// the latest window subsumes everything before it. A background flusher
// persists the newest dropped window once the interval allows it.
type CoalescedStore struct {
	store    Store
	interval time.Duration

	mu      sync.Mutex
	last    map[models.Program]time.Time
	pending map[models.Program]*models.SignatureWindow

	stop     chan struct{}
	flushers sync.WaitGroup
}

// NewCoalescedStore wraps store with the default one-second write cadence.
func NewCoalescedStore(store Store) *CoalescedStore {
	return NewCoalescedStoreWithInterval(store, config.CheckpointWriteInterval)
}

// NewCoalescedStoreWithInterval wraps store with a custom cadence (for
// testing).
func NewCoalescedStoreWithInterval(store Store, interval time.Duration) *CoalescedStore {
	c := &CoalescedStore{
		store:    store,
		interval: interval,
		last:     make(map[models.Program]time.Time),
		pending:  make(map[models.Program]*models.SignatureWindow),
		stop:     make(chan struct{}),
	}
	c.flushers.Add(1)
	go c.flushLoop()
	return c
}

// Get returns the freshest window: a pending coalesced write when one
// exists, otherwise the persisted one.
func (c *CoalescedStore) Get(ctx context.Context, program models.Program) (*models.SignatureWindow, error) {
	c.mu.Lock()
	if window, ok := c.pending[program]; ok {
		c.mu.Unlock()
		return window, nil
	}
	c.mu.Unlock()
	return c.store.Get(ctx, program)
}

// Set persists the window immediately when the program's write budget
// allows, and otherwise parks it as the pending write. The most recent
// window always wins.
func (c *CoalescedStore) Set(ctx context.Context, program models.Program, window *models.SignatureWindow) error {
	c.mu.Lock()
	if time.Since(c.last[program]) >= c.interval {
		c.last[program] = time.Now()
		delete(c.pending, program)
		c.mu.Unlock()
		return c.store.Set(ctx, program, window)
	}
	c.pending[program] = window
	c.mu.Unlock()
	return nil
}

// Close flushes pending windows and closes the underlying store.
func (c *CoalescedStore) Close() error {
	close(c.stop)
	c.flushers.Wait()

	c.mu.Lock()
	remaining := c.pending
	c.pending = make(map[models.Program]*models.SignatureWindow)
	c.mu.Unlock()

	for program, window := range remaining {
		if err := c.store.Set(context.Background(), program, window); err != nil {
			slog.Error("final checkpoint flush failed",
				"program", program,
				"error", err,
			)
		}
	}
	return c.store.Close()
}

// flushLoop periodically persists parked windows whose program budget has
// replenished.
func (c *CoalescedStore) flushLoop() {
	defer c.flushers.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.flushEligible()
		}
	}
}

func (c *CoalescedStore) flushEligible() {
	type write struct {
		program models.Program
		window  *models.SignatureWindow
	}

	var writes []write
	now := time.Now()

	c.mu.Lock()
	for program, window := range c.pending {
		if now.Sub(c.last[program]) >= c.interval {
			c.last[program] = now
			delete(c.pending, program)
			writes = append(writes, write{program: program, window: window})
		}
	}
	c.mu.Unlock()

	for _, w := range writes {
		if err := c.store.Set(context.Background(), w.program, w.window); err != nil {
			slog.Warn("coalesced checkpoint flush failed",
				"program", w.program,
				"error", err,
			)
		}
	}
}
