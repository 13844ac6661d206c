// Package scanner drives the bidirectional signature discovery loop for one
// DLN program: a forward pass catches signatures newer than the checkpoint
// window, a backward pass backfills older ones, and every processed
// signature advances the persisted window.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/chain"
	"github.com/dlnlabs/dln-indexer/internal/checkpoint"
	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// ChainClient is the slice of the RPC client the scanner reads from.
type ChainClient interface {
	ListSignatures(ctx context.Context, program string, opts chain.ListOptions) ([]models.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*chain.Transaction, error)
}

// Valuer prices a raw token amount in USD. Pricing absences come back as
// tagged results, not errors.
type Valuer interface {
	Value(ctx context.Context, mint string, amount *big.Int) (models.PricingResult, error)
}

// OrderResolver prices a fulfilled order through the external order service.
type OrderResolver interface {
	Resolve(ctx context.Context, orderID string) (models.PricingResult, error)
}

// Sink is the slice of the analytics store the scanner writes to.
type Sink interface {
	Insert(ctx context.Context, orders []models.Order) error
}

// Scanner indexes one program. Run owns all mutable state; a Scanner must
// not be shared across goroutines.
type Scanner struct {
	program  models.Program
	address  string
	chain    ChainClient
	oracle   Valuer
	resolver OrderResolver
	sink     Sink
	store    checkpoint.Store

	batchSize int
	delay     time.Duration

	window *models.SignatureWindow
}

// New creates a scanner for one program address. The pricing services and
// stores are shared with the sibling scanner; each keeps its own internal
// synchronization.
func New(
	program models.Program,
	address string,
	client ChainClient,
	oracle Valuer,
	resolver OrderResolver,
	sink Sink,
	store checkpoint.Store,
	cfg *config.Config,
) *Scanner {
	return &Scanner{
		program:   program,
		address:   address,
		chain:     client,
		oracle:    oracle,
		resolver:  resolver,
		sink:      sink,
		store:     store,
		batchSize: cfg.BatchSize,
		delay:     time.Duration(cfg.DelayMs) * time.Millisecond,
	}
}

// Run scans until ctx is cancelled. Pass failures are logged and retried
// after a pause; nothing short of cancellation exits the loop.
func (s *Scanner) Run(ctx context.Context) {
	s.loadWindow(ctx)

	slog.Info("scanner started",
		"program", s.program,
		"address", s.address,
		"batchSize", s.batchSize,
		"resumed", s.window != nil,
	)

	for {
		if ctx.Err() != nil {
			slog.Info("scanner stopped", "program", s.program)
			return
		}

		discovered, err := s.forwardPass(ctx)
		if err != nil {
			s.pause(ctx, "forward", err)
			continue
		}

		processedBackward := 0
		if discovered < s.batchSize && s.window != nil {
			processedBackward, err = s.backwardPass(ctx)
			if err != nil {
				s.pause(ctx, "backward", err)
				continue
			}
		}

		if discovered == 0 && processedBackward == 0 {
			s.sleep(ctx, s.delay)
		}
	}
}

// loadWindow restores the persisted window. An unreadable checkpoint means
// a fresh start from the chain head.
func (s *Scanner) loadWindow(ctx context.Context) {
	window, err := s.store.Get(ctx, s.program)
	if err != nil {
		slog.Warn("checkpoint read failed, starting fresh",
			"program", s.program,
			"error", err,
		)
		return
	}
	s.window = window
	if window != nil {
		slog.Info("checkpoint resumed",
			"program", s.program,
			"from", window.From.Signature,
			"fromTime", window.From.BlockTime,
			"to", window.To.Signature,
			"toTime", window.To.BlockTime,
		)
	}
}

// pause logs a pass failure and backs off for twice the idle delay.
// Cancellation-driven failures exit silently; the loop head reports the stop.
func (s *Scanner) pause(ctx context.Context, pass string, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	slog.Error("scan pass failed",
		"program", s.program,
		"pass", pass,
		"error", err,
	)
	s.sleep(ctx, 2*s.delay)
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
