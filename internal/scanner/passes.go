package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/chain"
	"github.com/dlnlabs/dln-indexer/internal/events"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// forwardPass discovers every signature strictly newer than the window head
// and processes them oldest-first. It returns how many signatures the
// discovery yielded, which gates the backward pass.
func (s *Scanner) forwardPass(ctx context.Context) (int, error) {
	sigs, err := s.newerSignatures(ctx)
	if err != nil {
		return 0, fmt.Errorf("list forward: %w", err)
	}
	if len(sigs) == 0 {
		return 0, nil
	}

	slog.Debug("forward pass",
		"program", s.program,
		"count", len(sigs),
	)

	if err := s.processAll(ctx, sigs, models.DirectionForward); err != nil {
		return len(sigs), err
	}
	return len(sigs), nil
}

// newerSignatures pages backward from the chain head until it meets the
// window head or runs out of data, then flips the accumulated list to
// oldest-first. Without a window it takes the most recent page only.
func (s *Scanner) newerSignatures(ctx context.Context) ([]models.SignatureInfo, error) {
	if s.window == nil {
		page, err := s.chain.ListSignatures(ctx, s.address, chain.ListOptions{Limit: s.batchSize})
		if err != nil {
			return nil, err
		}
		reverse(page)
		return page, nil
	}

	var (
		collected []models.SignatureInfo
		cursor    string
	)
	for {
		page, err := s.chain.ListSignatures(ctx, s.address, chain.ListOptions{
			Limit:  s.batchSize,
			Before: cursor,
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		reachedWindow := false
		for _, sig := range page {
			if sig.Signature == s.window.To.Signature {
				reachedWindow = true
				break
			}
			collected = append(collected, sig)
		}
		if reachedWindow || len(page) < s.batchSize {
			break
		}
		cursor = page[len(page)-1].Signature
	}

	reverse(collected)
	return collected, nil
}

// backwardPass backfills one page older than the window tail, processing it
// newest-first so the tail walks monotonically into the past.
func (s *Scanner) backwardPass(ctx context.Context) (int, error) {
	page, err := s.chain.ListSignatures(ctx, s.address, chain.ListOptions{
		Limit:  s.batchSize,
		Before: s.window.From.Signature,
	})
	if err != nil {
		return 0, fmt.Errorf("list backward: %w", err)
	}
	if len(page) == 0 {
		return 0, nil
	}

	slog.Debug("backward pass",
		"program", s.program,
		"count", len(page),
	)

	if err := s.processAll(ctx, page, models.DirectionBackward); err != nil {
		return 0, err
	}
	return len(page), nil
}

// processAll runs the pipeline over a batch, checking for cancellation
// between signatures. A failed signature aborts the batch without advancing
// past it; the next pass rediscovers it.
func (s *Scanner) processAll(ctx context.Context, sigs []models.SignatureInfo, dir models.Direction) error {
	var orders, skipped int
	for _, sig := range sigs {
		if err := ctx.Err(); err != nil {
			return err
		}
		written, err := s.processSignature(ctx, sig, dir)
		if err != nil {
			return err
		}
		if written == 0 {
			skipped++
		}
		orders += written
	}

	slog.Info("pass complete",
		"program", s.program,
		"direction", dir,
		"signatures", len(sigs),
		"orders", orders,
		"skipped", skipped,
	)
	return nil
}

// processSignature indexes one signature and then advances the window. It
// returns how many orders were written; failed transactions and transactions
// the node no longer serves produce zero orders but still count as processed.
func (s *Scanner) processSignature(ctx context.Context, sig models.SignatureInfo, dir models.Direction) (int, error) {
	written := 0
	if sig.IsValid() {
		n, err := s.indexTransaction(ctx, sig)
		if err != nil {
			return 0, err
		}
		written = n
	}
	return written, s.advance(ctx, sig, dir)
}

// indexTransaction fetches, decodes, prices, and persists the orders of one
// transaction, returning how many orders it wrote. Orders reach the sink
// before the window moves, so a crash can re-process but never skip.
func (s *Scanner) indexTransaction(ctx context.Context, sig models.SignatureInfo) (int, error) {
	tx, err := s.chain.GetTransaction(ctx, sig.Signature)
	if err != nil {
		return 0, fmt.Errorf("get transaction %s: %w", sig.Signature, err)
	}
	if tx == nil {
		slog.Debug("transaction not found",
			"program", s.program,
			"signature", sig.Signature,
		)
		return 0, nil
	}

	decoded := events.Decode(tx.LogMessages, s.address)
	if decoded.Empty() {
		return 0, nil
	}

	blockTime := orderBlockTime(sig, tx)
	orders := make([]models.Order, 0, len(decoded.Created)+len(decoded.Fulfilled))

	for _, ev := range decoded.Created {
		res, err := s.oracle.Value(ctx, ev.Order.Give.TokenBase58(), ev.Order.Give.AmountInt())
		if err != nil {
			return 0, fmt.Errorf("price created order %s: %w", ev.OrderID, err)
		}
		orders = append(orders, models.NewOrder(ev.OrderID, sig.Signature, blockTime, models.KindOrderCreated, res))
	}
	for _, ev := range decoded.Fulfilled {
		res, err := s.resolver.Resolve(ctx, ev.OrderID)
		if err != nil {
			return 0, fmt.Errorf("resolve fulfilled order %s: %w", ev.OrderID, err)
		}
		orders = append(orders, models.NewOrder(ev.OrderID, sig.Signature, blockTime, models.KindOrderFulfilled, res))
	}

	if err := s.sink.Insert(ctx, orders); err != nil {
		return 0, fmt.Errorf("insert %d orders: %w", len(orders), err)
	}

	slog.Info("orders indexed",
		"program", s.program,
		"signature", sig.Signature,
		"created", len(decoded.Created),
		"fulfilled", len(decoded.Fulfilled),
	)
	return len(orders), nil
}

// advance moves the window boundary for the processed signature and
// checkpoints it. The in-memory window only moves once the store accepted
// the write, keeping both views consistent.
func (s *Scanner) advance(ctx context.Context, sig models.SignatureInfo, dir models.Direction) error {
	next := models.Advance(s.window, signaturePoint(sig), dir)
	if err := s.store.Set(ctx, s.program, &next); err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.program, err)
	}
	s.window = &next
	return nil
}

// signaturePoint builds a window boundary, falling back to wall-clock
// seconds when the node reports no block time.
func signaturePoint(sig models.SignatureInfo) models.SignaturePoint {
	point := models.SignaturePoint{Signature: sig.Signature}
	if sig.BlockTime != nil {
		point.BlockTime = *sig.BlockTime
	} else {
		point.BlockTime = time.Now().Unix()
	}
	return point
}

// orderBlockTime picks the persisted block time of an order: the
// transaction's own timestamp when present, else the signature listing's,
// else wall clock.
func orderBlockTime(sig models.SignatureInfo, tx *chain.Transaction) int64 {
	if tx.BlockTime != nil {
		return *tx.BlockTime
	}
	if sig.BlockTime != nil {
		return *sig.BlockTime
	}
	return time.Now().Unix()
}

func reverse(sigs []models.SignatureInfo) {
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
}
