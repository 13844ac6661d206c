package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// Transaction is the slice of a parsed chain transaction the indexer consumes.
type Transaction struct {
	BlockTime   *int64
	LogMessages []string
}

// ListOptions narrows a ListSignatures page.
// Before excludes the given signature and everything newer; Until excludes
// the given signature and everything older.
type ListOptions struct {
	Limit  int
	Before string
	Until  string
}

// Client is the sole gateway to the Solana RPC endpoint. All calls pass
// through one paced request lane, with bounded retries.
type Client struct {
	rpc        *rpc.Client
	lane       *requestLane
	metrics    *Metrics
	maxRetries int
	retryBase  time.Duration
}

// New creates a rate-limited client for the given RPC endpoint.
func New(endpoint string, rps int) *Client {
	slog.Info("chain client created",
		"endpoint", endpoint,
		"rps", rps,
	)
	return &Client{
		rpc:        rpc.New(endpoint),
		lane:       newRequestLane(rps),
		metrics:    NewMetrics(),
		maxRetries: config.RPCMaxRetries,
		retryBase:  config.RPCRetryBaseBackoff,
	}
}

// Metrics exposes the client's call counters for periodic logging.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// ListSignatures returns one page of signatures for the program address,
// newest-first, as served by getSignaturesForAddress.
func (c *Client) ListSignatures(ctx context.Context, program string, opts ListOptions) ([]models.SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(program)
	if err != nil {
		return nil, fmt.Errorf("invalid program address %q: %w", program, err)
	}

	rpcOpts := rpc.GetSignaturesForAddressOpts{
		Commitment: rpc.CommitmentConfirmed,
	}
	if opts.Limit > 0 {
		limit := opts.Limit
		rpcOpts.Limit = &limit
	}
	if opts.Before != "" {
		sig, err := solana.SignatureFromBase58(opts.Before)
		if err != nil {
			return nil, fmt.Errorf("invalid before cursor %q: %w", opts.Before, err)
		}
		rpcOpts.Before = sig
	}
	if opts.Until != "" {
		sig, err := solana.SignatureFromBase58(opts.Until)
		if err != nil {
			return nil, fmt.Errorf("invalid until cursor %q: %w", opts.Until, err)
		}
		rpcOpts.Until = sig
	}

	var page []*rpc.TransactionSignature
	err = c.withRetry(ctx, "getSignaturesForAddress", func(callCtx context.Context) error {
		var callErr error
		page, callErr = c.rpc.GetSignaturesForAddressWithOpts(callCtx, pubkey, &rpcOpts)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	infos := make([]models.SignatureInfo, 0, len(page))
	for _, entry := range page {
		info := models.SignatureInfo{
			Signature: entry.Signature.String(),
			Slot:      entry.Slot,
			Err:       entry.Err,
		}
		if entry.BlockTime != nil {
			bt := int64(*entry.BlockTime)
			info.BlockTime = &bt
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetTransaction fetches a confirmed transaction by signature.
// Returns (nil, nil) when the node does not know the signature.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	version := uint64(0)
	opts := rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	}

	var result *rpc.GetTransactionResult
	err = c.withRetry(ctx, "getTransaction", func(callCtx context.Context) error {
		out, callErr := c.rpc.GetTransaction(callCtx, sig, &opts)
		if errors.Is(callErr, rpc.ErrNotFound) {
			result = nil
			return nil
		}
		result = out
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	tx := &Transaction{}
	if result.BlockTime != nil {
		bt := int64(*result.BlockTime)
		tx.BlockTime = &bt
	}
	if result.Meta != nil {
		tx.LogMessages = result.Meta.LogMessages
	}
	return tx, nil
}

// MintAccountData fetches the raw account data of a token mint.
// Returns (nil, nil) when the account does not exist.
func (c *Client) MintAccountData(ctx context.Context, mint string) ([]byte, error) {
	pubkey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}

	var result *rpc.GetAccountInfoResult
	err = c.withRetry(ctx, "getAccountInfo", func(callCtx context.Context) error {
		out, callErr := c.rpc.GetAccountInfo(callCtx, pubkey)
		if errors.Is(callErr, rpc.ErrNotFound) {
			result = nil
			return nil
		}
		result = out
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, nil
	}
	return result.Value.Data.GetBinary(), nil
}

// withRetry serializes one RPC call through the request lane, retrying
// transport and rate-limit failures with exponential backoff.
func (c *Client) withRetry(ctx context.Context, method string, call func(context.Context) error) error {
	backoff := c.retryBase
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.lane.enter(ctx); err != nil {
			return err
		}

		start := time.Now()
		err := call(ctx)
		elapsed := time.Since(start)
		c.lane.leave()

		c.metrics.Record(method, elapsed, err)

		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}

		if isRateLimited(err) {
			slog.Warn("rpc rate limited, backing off",
				"method", method,
				"attempt", attempt,
				"backoff", backoff,
			)
		} else {
			slog.Warn("rpc call failed, retrying",
				"method", method,
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("%s after %d attempts: %w: %w", method, c.maxRetries, config.ErrRetriesExhausted, lastErr)
}

// isRateLimited detects HTTP 429 responses surfaced through the RPC client.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit")
}
