package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// Resolver prices fulfilled orders. The fulfillment event does not carry the
// amount, so the original order is looked up in the external order API and
// its take offer is priced through the oracle.
type Resolver struct {
	client     *http.Client
	baseURL    string
	oracle     *Oracle
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	retryCap   time.Duration

	// One request in flight keeps the order API at a polite single lane.
	lane sync.Mutex
}

// NewResolver creates a resolver against the production order API.
func NewResolver(oracle *Oracle) *Resolver {
	return NewResolverWithURL(oracle, config.OrderAPIBaseURL)
}

// NewResolverWithURL creates a resolver against a custom base URL (for
// testing).
func NewResolverWithURL(oracle *Oracle, baseURL string) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: config.APITimeout,
		},
		baseURL: baseURL,
		oracle:  oracle,
		// Burst of 1 so a full budget cannot be spent in a spike.
		limiter:    rate.NewLimiter(rate.Limit(config.OrderAPIRPS), 1),
		maxRetries: config.OrderAPIMaxRetries,
		retryBase:  config.OrderAPIRetryBase,
		retryCap:   config.OrderAPIRetryCap,
	}
}

// liteModel is the slice of the order API response the resolver consumes.
type liteModel struct {
	OrderID struct {
		StringValue string `json:"stringValue"`
	} `json:"orderId"`
	TakeOffer struct {
		ChainID struct {
			BigIntegerValue json.Number `json:"bigIntegerValue"`
		} `json:"chainId"`
		TokenAddress struct {
			StringValue string `json:"stringValue"`
		} `json:"tokenAddress"`
		Amount struct {
			StringValue string `json:"stringValue"`
		} `json:"amount"`
	} `json:"takeOffer"`
}

// Resolve computes the USD value of a fulfilled order identified by its hex
// order ID. Unpriceable orders come back as tagged pricing errors, never as
// failures; the returned error is non-nil only when ctx ends.
func (r *Resolver) Resolve(ctx context.Context, orderID string) (models.PricingResult, error) {
	if !strings.HasPrefix(orderID, "0x") {
		orderID = "0x" + orderID
	}

	order, errTag, err := r.fetchOrder(ctx, orderID)
	if err != nil {
		return models.PricingResult{}, err
	}
	if errTag != "" {
		return models.PricedError(errTag), nil
	}

	chainID, err := order.TakeOffer.ChainID.BigIntegerValue.Int64()
	if err != nil {
		slog.Warn("order api returned unparseable chain id",
			"orderID", orderID,
			"chainID", order.TakeOffer.ChainID.BigIntegerValue.String(),
		)
		return models.PricedError(models.PricingErrRequestFailed), nil
	}
	if chainID != config.SolanaChainID {
		return models.PricedError(models.PricingErrNotSolana), nil
	}

	amount, ok := new(big.Int).SetString(order.TakeOffer.Amount.StringValue, 10)
	if !ok {
		slog.Warn("order api returned unparseable amount",
			"orderID", orderID,
			"amount", order.TakeOffer.Amount.StringValue,
		)
		return models.PricedError(models.PricingErrRequestFailed), nil
	}

	mint := AliasMint(order.TakeOffer.TokenAddress.StringValue)
	return r.oracle.Value(ctx, mint, amount)
}

// fetchOrder retrieves the order lite-model, retrying 429 and transport
// failures with capped exponential backoff. A non-empty errTag is the
// terminal pricing tag for responses that will never succeed.
func (r *Resolver) fetchOrder(ctx context.Context, orderID string) (*liteModel, string, error) {
	url := fmt.Sprintf("%s/api/Orders/%s/liteModel", r.baseURL, orderID)
	backoff := r.retryBase
	lastTag := models.PricingErrMaxRetriesExceeded

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		order, errTag, retryable, err := r.fetchOnce(ctx, url, orderID)
		if err != nil {
			return nil, "", err
		}
		if !retryable {
			return order, errTag, nil
		}
		lastTag = errTag

		if attempt == r.maxRetries {
			break
		}

		slog.Warn("order api retry",
			"orderID", orderID,
			"attempt", attempt,
			"backoff", backoff,
			"reason", errTag,
		)
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.retryCap {
			backoff = r.retryCap
		}
	}

	slog.Warn("order api retries exhausted",
		"orderID", orderID,
		"attempts", r.maxRetries,
	)
	return nil, lastTag, nil
}

// fetchOnce performs a single order API request. retryable reports whether
// the failure is worth another attempt; errTag carries the tag the attempt
// would surface if it were the last.
func (r *Resolver) fetchOnce(ctx context.Context, url, orderID string) (order *liteModel, errTag string, retryable bool, err error) {
	r.lane.Lock()
	defer r.lane.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Error("order api request build failed", "orderID", orderID, "error", err)
		return nil, models.PricingErrRequestFailed, false, nil
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", false, ctx.Err()
		}
		slog.Warn("order api request failed",
			"orderID", orderID,
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return nil, models.PricingErrRequestFailed, true, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.PricingErrMaxRetriesExceeded, true, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.PricingErrOrderNotFound, false, nil
	default:
		return nil, models.APIStatusTag(resp.StatusCode), false, nil
	}

	var body liteModel
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("order api response decode failed",
			"orderID", orderID,
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return nil, models.PricingErrRequestFailed, true, nil
	}
	return &body, "", false, nil
}
