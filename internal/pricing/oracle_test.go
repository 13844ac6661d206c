package pricing

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

type fakeKVEntry struct {
	value string
	ttl   time.Duration
}

type fakeKV struct {
	mu      sync.Mutex
	entries map[string]fakeKVEntry
}

func newFakeKV() *fakeKV {
	return &fakeKV{entries: make(map[string]fakeKVEntry)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[key]
	return entry.value, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = fakeKVEntry{value: value, ttl: ttl}
	return nil
}

type fakeMintReader struct {
	data  []byte
	delay time.Duration
	calls int32
}

func (f *fakeMintReader) MintAccountData(ctx context.Context, mint string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.data, nil
}

// newTestOracle stands up an oracle whose price provider is the given
// handler. The returned counter tracks provider hits.
func newTestOracle(t *testing.T, kv KV, chain MintReader, handler http.HandlerFunc) (*Oracle, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewJupiterClientWithURL(srv.URL, "test-key")
	client.retryBase = 5 * time.Millisecond
	return NewOracle(client, chain, kv), &calls
}

func quoteHandler(mint string, price float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{%q:{"usdPrice":%v}}`, mint, price)
	}
}

func TestOracle_PriceWritesThroughCaches(t *testing.T) {
	kv := newFakeKV()
	oracle, calls := newTestOracle(t, kv, &fakeMintReader{}, quoteHandler(config.WrappedSOLMint, 150))

	price, found, err := oracle.Price(context.Background(), config.WrappedSOLMint)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if !found || price != 150 {
		t.Fatalf("Price() = (%v, %v), want (150, true)", price, found)
	}

	// Second lookup must come from the in-process cache.
	if _, _, err := oracle.Price(context.Background(), config.WrappedSOLMint); err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("provider saw %d calls, want 1", got)
	}

	key := config.PriceCacheKeyPrefix + config.WrappedSOLMint
	kv.mu.Lock()
	entry, ok := kv.entries[key]
	kv.mu.Unlock()
	if !ok {
		t.Fatalf("shared KV missing %q after fetch", key)
	}
	if entry.value != "150" {
		t.Errorf("cached price = %q, want %q", entry.value, "150")
	}
	if entry.ttl != config.PriceCacheTTL {
		t.Errorf("cached price ttl = %v, want %v", entry.ttl, config.PriceCacheTTL)
	}
}

func TestOracle_PriceServedFromKV(t *testing.T) {
	kv := newFakeKV()
	kv.entries[config.PriceCacheKeyPrefix+config.SOLUSDCMint] = fakeKVEntry{value: "0.9998"}

	oracle, calls := newTestOracle(t, kv, &fakeMintReader{}, quoteHandler(config.SOLUSDCMint, 1))

	price, found, err := oracle.Price(context.Background(), config.SOLUSDCMint)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if !found || price != 0.9998 {
		t.Errorf("Price() = (%v, %v), want (0.9998, true)", price, found)
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Errorf("provider saw %d calls, want 0 with a warm KV", got)
	}
}

func TestOracle_PriceAliasesNativeSOL(t *testing.T) {
	var gotIDs string
	kv := newFakeKV()
	oracle, _ := newTestOracle(t, kv, &fakeMintReader{}, func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("ids")
		fmt.Fprintf(w, `{%q:{"usdPrice":150}}`, config.WrappedSOLMint)
	})

	price, found, err := oracle.Price(context.Background(), config.NativeSOLSentinel)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if !found || price != 150 {
		t.Errorf("Price() = (%v, %v), want (150, true)", price, found)
	}
	if gotIDs != config.WrappedSOLMint {
		t.Errorf("provider queried for %q, want wrapped SOL %q", gotIDs, config.WrappedSOLMint)
	}
}

func TestOracle_DecimalsKnownMint(t *testing.T) {
	reader := &fakeMintReader{}
	oracle, _ := newTestOracle(t, newFakeKV(), reader, quoteHandler(config.SOLUSDCMint, 1))

	decimals, found, err := oracle.Decimals(context.Background(), config.SOLUSDCMint)
	if err != nil {
		t.Fatalf("Decimals() error = %v", err)
	}
	if !found || decimals != 6 {
		t.Errorf("Decimals(USDC) = (%d, %v), want (6, true)", decimals, found)
	}
	if got := atomic.LoadInt32(&reader.calls); got != 0 {
		t.Errorf("chain saw %d calls, want 0 for a well-known mint", got)
	}
}

func TestOracle_DecimalsFromChain(t *testing.T) {
	mint := "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	data := make([]byte, config.MintAccountMinBytes)
	data[config.MintDecimalsOffset] = 7

	reader := &fakeMintReader{data: data}
	kv := newFakeKV()
	oracle, _ := newTestOracle(t, kv, reader, quoteHandler(mint, 1))

	decimals, found, err := oracle.Decimals(context.Background(), mint)
	if err != nil {
		t.Fatalf("Decimals() error = %v", err)
	}
	if !found || decimals != 7 {
		t.Fatalf("Decimals() = (%d, %v), want (7, true)", decimals, found)
	}

	kv.mu.Lock()
	entry, ok := kv.entries[config.DecimalsCacheKeyPrefix+mint]
	kv.mu.Unlock()
	if !ok || entry.value != "7" {
		t.Errorf("shared KV decimals entry = (%q, %v), want (\"7\", true)", entry.value, ok)
	}
	if entry.ttl != 0 {
		t.Errorf("decimals ttl = %v, want no expiry", entry.ttl)
	}

	// Second lookup must not touch the chain again.
	if _, _, err := oracle.Decimals(context.Background(), mint); err != nil {
		t.Fatalf("Decimals() error = %v", err)
	}
	if got := atomic.LoadInt32(&reader.calls); got != 1 {
		t.Errorf("chain saw %d calls, want 1", got)
	}
}

func TestOracle_DecimalsAccountTooShort(t *testing.T) {
	mint := "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	reader := &fakeMintReader{data: make([]byte, 10)}
	oracle, _ := newTestOracle(t, newFakeKV(), reader, quoteHandler(mint, 1))

	_, found, err := oracle.Decimals(context.Background(), mint)
	if err != nil {
		t.Fatalf("Decimals() error = %v", err)
	}
	if found {
		t.Error("Decimals() found = true for a truncated mint account")
	}
}

func TestOracle_DecimalsInflightDedup(t *testing.T) {
	mint := "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	data := make([]byte, config.MintAccountMinBytes)
	data[config.MintDecimalsOffset] = 9

	reader := &fakeMintReader{data: data, delay: 50 * time.Millisecond}
	oracle, _ := newTestOracle(t, newFakeKV(), reader, quoteHandler(mint, 1))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decimals, found, err := oracle.Decimals(context.Background(), mint)
			if err != nil {
				t.Errorf("Decimals() error = %v", err)
				return
			}
			if !found || decimals != 9 {
				t.Errorf("Decimals() = (%d, %v), want (9, true)", decimals, found)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&reader.calls); got != 1 {
		t.Errorf("chain saw %d concurrent fetches, want 1", got)
	}
}

func TestOracle_Value(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		oracle, _ := newTestOracle(t, newFakeKV(), &fakeMintReader{}, quoteHandler(config.WrappedSOLMint, 150))

		res, err := oracle.Value(context.Background(), config.WrappedSOLMint, big.NewInt(1_000_000_000))
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if !res.OK() || *res.USDValue != 150 {
			t.Errorf("Value() = %+v, want ok with 150", res)
		}
	})

	t.Run("no price", func(t *testing.T) {
		oracle, _ := newTestOracle(t, newFakeKV(), &fakeMintReader{}, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		})

		res, err := oracle.Value(context.Background(), config.WrappedSOLMint, big.NewInt(1))
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if res.OK() || res.ErrorTag != models.PricingErrNoPrice {
			t.Errorf("Value() = %+v, want no_price", res)
		}
	})

	t.Run("no decimals", func(t *testing.T) {
		mint := "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
		reader := &fakeMintReader{data: nil} // mint account absent
		oracle, _ := newTestOracle(t, newFakeKV(), reader, quoteHandler(mint, 2))

		res, err := oracle.Value(context.Background(), mint, big.NewInt(1))
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if res.OK() || res.ErrorTag != models.PricingErrNoDecimals {
			t.Errorf("Value() = %+v, want no_decimals", res)
		}
	})

	t.Run("zero amount skips lookups", func(t *testing.T) {
		oracle, calls := newTestOracle(t, newFakeKV(), &fakeMintReader{}, quoteHandler(config.WrappedSOLMint, 150))

		res, err := oracle.Value(context.Background(), config.WrappedSOLMint, big.NewInt(0))
		if err != nil {
			t.Fatalf("Value() error = %v", err)
		}
		if !res.OK() || *res.USDValue != 0 {
			t.Errorf("Value() = %+v, want ok with 0", res)
		}
		if got := atomic.LoadInt32(calls); got != 0 {
			t.Errorf("provider saw %d calls, want 0 for a zero amount", got)
		}
	})
}
