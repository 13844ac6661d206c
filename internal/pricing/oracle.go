package pricing

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// KV is the shared second-level cache behind the oracle's in-process maps.
// A miss returns ok=false with a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV adapts a Redis client to the KV cache role.
type RedisKV struct {
	rdb redis.Cmdable
}

// NewRedisKV wraps an existing Redis client.
func NewRedisKV(rdb redis.Cmdable) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// MintReader reads raw mint account data from the chain. Satisfied by the
// chain client.
type MintReader interface {
	MintAccountData(ctx context.Context, mint string) ([]byte, error)
}

// knownDecimals shortcuts the on-chain read for the mints the protocol
// trades most.
var knownDecimals = map[string]uint8{
	config.WrappedSOLMint: 9,
	config.SOLUSDCMint:    6,
	config.SOLUSDTMint:    6,
	config.SOLBONKMint:    5,
	config.SOLJUPMint:     6,
}

type cachedPrice struct {
	value float64
	at    time.Time
}

// decimalsFetch tracks one in-flight on-chain decimals read so concurrent
// requests for the same mint collapse into a single RPC call.
type decimalsFetch struct {
	done  chan struct{}
	value uint8
	found bool
}

// Oracle answers (mint → USD price) and (mint → decimals) with an in-process
// first-level cache, a shared KV second level, and provider/chain fallbacks.
// Safe for concurrent use by both scanners.
type Oracle struct {
	prices *JupiterClient
	chain  MintReader
	kv     KV

	mu         sync.RWMutex
	priceCache map[string]cachedPrice
	decimals   map[string]uint8
	inflight   map[string]*decimalsFetch

	priceTTL time.Duration
}

// NewOracle builds an oracle over the given price client, chain reader, and
// shared KV cache.
func NewOracle(prices *JupiterClient, chain MintReader, kv KV) *Oracle {
	return &Oracle{
		prices:     prices,
		chain:      chain,
		kv:         kv,
		priceCache: make(map[string]cachedPrice),
		decimals:   make(map[string]uint8),
		inflight:   make(map[string]*decimalsFetch),
		priceTTL:   config.PriceCacheTTL,
	}
}

// Value prices a raw token amount in USD. Zero amounts short-circuit to an
// ok/0 result without any lookups. Absent price or decimals map to tagged
// pricing errors; the returned error is non-nil only when ctx ends.
func (o *Oracle) Value(ctx context.Context, mint string, amount *big.Int) (models.PricingResult, error) {
	if amount.Sign() == 0 {
		return models.PricedOK(0), nil
	}

	price, ok, err := o.Price(ctx, mint)
	if err != nil {
		return models.PricingResult{}, err
	}
	if !ok {
		return models.PricedError(models.PricingErrNoPrice), nil
	}

	decimals, ok, err := o.Decimals(ctx, mint)
	if err != nil {
		return models.PricingResult{}, err
	}
	if !ok {
		return models.PricedError(models.PricingErrNoDecimals), nil
	}

	return models.PricedOK(CalculateUSD(amount, decimals, price)), nil
}

// Price returns the USD price for a mint, consulting the in-process cache,
// the shared KV, and finally the price provider. ok is false when no source
// has a quote.
func (o *Oracle) Price(ctx context.Context, mint string) (float64, bool, error) {
	mint = AliasMint(mint)

	o.mu.RLock()
	entry, hit := o.priceCache[mint]
	o.mu.RUnlock()
	if hit && time.Since(entry.at) < o.priceTTL {
		return entry.value, true, nil
	}

	key := config.PriceCacheKeyPrefix + mint
	if raw, ok := o.kvGet(ctx, key); ok {
		if price, err := strconv.ParseFloat(raw, 64); err == nil {
			o.storePrice(mint, price)
			return price, true, nil
		}
		slog.Warn("discarding unparseable cached price", "mint", mint, "value", raw)
	}

	price, found, err := o.prices.USDPrice(ctx, mint)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	o.storePrice(mint, price)
	o.kvSet(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), o.priceTTL)
	return price, true, nil
}

// Decimals returns the mint's base-unit decimals. Lookup order: in-process
// map, shared KV, well-known mints, then the mint account on chain. ok is
// false when every source comes up empty.
func (o *Oracle) Decimals(ctx context.Context, mint string) (uint8, bool, error) {
	mint = AliasMint(mint)

	o.mu.RLock()
	cached, hit := o.decimals[mint]
	o.mu.RUnlock()
	if hit {
		return cached, true, nil
	}

	key := config.DecimalsCacheKeyPrefix + mint
	if raw, ok := o.kvGet(ctx, key); ok {
		if parsed, err := strconv.ParseUint(raw, 10, 8); err == nil && parsed <= config.MaxTokenDecimals {
			o.storeDecimals(mint, uint8(parsed))
			return uint8(parsed), true, nil
		}
		slog.Warn("discarding unparseable cached decimals", "mint", mint, "value", raw)
	}

	if known, ok := knownDecimals[mint]; ok {
		o.storeDecimals(mint, known)
		o.kvSet(ctx, key, strconv.Itoa(int(known)), 0)
		return known, true, nil
	}

	return o.fetchDecimals(ctx, mint, key)
}

// fetchDecimals reads decimals from the mint account, de-duplicating
// concurrent fetches for the same mint.
func (o *Oracle) fetchDecimals(ctx context.Context, mint, key string) (uint8, bool, error) {
	o.mu.Lock()
	if f, waiting := o.inflight[mint]; waiting {
		o.mu.Unlock()
		select {
		case <-f.done:
			return f.value, f.found, nil
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
	f := &decimalsFetch{done: make(chan struct{})}
	o.inflight[mint] = f
	o.mu.Unlock()

	f.value, f.found = o.readMintDecimals(ctx, mint)
	close(f.done)

	o.mu.Lock()
	delete(o.inflight, mint)
	o.mu.Unlock()

	if !f.found {
		return 0, false, nil
	}

	o.storeDecimals(mint, f.value)
	o.kvSet(ctx, key, strconv.Itoa(int(f.value)), 0)
	return f.value, true, nil
}

// readMintDecimals extracts the decimals byte from raw mint account data.
func (o *Oracle) readMintDecimals(ctx context.Context, mint string) (uint8, bool) {
	data, err := o.chain.MintAccountData(ctx, mint)
	if err != nil {
		slog.Warn("mint account read failed", "mint", mint, "error", err)
		return 0, false
	}
	if data == nil {
		slog.Warn("mint account not found", "mint", mint)
		return 0, false
	}
	if len(data) < config.MintAccountMinBytes {
		slog.Warn("mint account data too short",
			"mint", mint,
			"bytes", len(data),
			"error", config.ErrMintAccountTooShort,
		)
		return 0, false
	}

	decimals := data[config.MintDecimalsOffset]
	if decimals > config.MaxTokenDecimals {
		slog.Warn("mint decimals out of range", "mint", mint, "decimals", decimals)
		return 0, false
	}
	return decimals, true
}

func (o *Oracle) storePrice(mint string, price float64) {
	o.mu.Lock()
	o.priceCache[mint] = cachedPrice{value: price, at: time.Now()}
	o.mu.Unlock()
}

func (o *Oracle) storeDecimals(mint string, decimals uint8) {
	o.mu.Lock()
	o.decimals[mint] = decimals
	o.mu.Unlock()
}

// kvGet reads through the shared cache; failures read as misses so a KV
// outage degrades to provider lookups instead of failing pricing.
func (o *Oracle) kvGet(ctx context.Context, key string) (string, bool) {
	val, ok, err := o.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("kv cache read failed", "key", key, "error", err)
		return "", false
	}
	return val, ok
}

func (o *Oracle) kvSet(ctx context.Context, key, value string, ttl time.Duration) {
	if err := o.kv.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("kv cache write failed", "key", key, "error", err)
	}
}
