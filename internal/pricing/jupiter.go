package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/config"
)

// JupiterClient fetches live USD token prices from the Jupiter price API.
type JupiterClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	retryBase  time.Duration
}

// NewJupiterClient creates a price client for the production endpoint.
func NewJupiterClient(apiKey string) *JupiterClient {
	return NewJupiterClientWithURL(config.JupiterBaseURL, apiKey)
}

// NewJupiterClientWithURL creates a price client against a custom base URL
// (for testing).
func NewJupiterClientWithURL(baseURL, apiKey string) *JupiterClient {
	return &JupiterClient{
		client: &http.Client{
			Timeout: config.APITimeout,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: config.PriceMaxRetries,
		retryBase:  config.PriceRetryBaseBackoff,
	}
}

// jupiterResponse is the /price/v3 body: one entry per requested mint.
type jupiterResponse map[string]struct {
	USDPrice float64 `json:"usdPrice"`
}

// USDPrice returns the live USD price for a mint. found is false when the
// provider has no quote; a provider outage also reads as absent so pricing
// degrades to a tagged error instead of stalling the scanners. The returned
// error is non-nil only when ctx ends.
func (j *JupiterClient) USDPrice(ctx context.Context, mint string) (float64, bool, error) {
	url := fmt.Sprintf("%s?ids=%s", j.baseURL, mint)
	backoff := j.retryBase

	for attempt := 1; attempt <= j.maxRetries; attempt++ {
		price, found, retryable, err := j.fetch(ctx, url, mint)
		if err != nil {
			return 0, false, err
		}
		if !retryable {
			return price, found, nil
		}
		if attempt == j.maxRetries {
			break
		}

		slog.Warn("price provider rate limited, backing off",
			"mint", mint,
			"attempt", attempt,
			"backoff", backoff,
		)
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	slog.Warn("price provider retries exhausted",
		"mint", mint,
		"attempts", j.maxRetries,
	)
	return 0, false, nil
}

// fetch performs one price request. retryable marks a 429 response.
func (j *JupiterClient) fetch(ctx context.Context, url, mint string) (price float64, found, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Error("price request build failed", "mint", mint, "error", err)
		return 0, false, false, nil
	}
	req.Header.Set("Accept", "application/json")
	if j.apiKey != "" {
		req.Header.Set("x-api-key", j.apiKey)
	}

	start := time.Now()
	resp, err := j.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, false, ctx.Err()
		}
		slog.Warn("price request failed",
			"mint", mint,
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return 0, false, false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, false, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("price provider non-200 response",
			"mint", mint,
			"status", resp.StatusCode,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return 0, false, false, nil
	}

	var body jupiterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("price response decode failed",
			"mint", mint,
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return 0, false, false, nil
	}

	entry, ok := body[mint]
	if !ok {
		slog.Debug("price provider has no quote", "mint", mint)
		return 0, false, false, nil
	}

	slog.Debug("price fetched",
		"mint", mint,
		"price", entry.USDPrice,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return entry.USDPrice, true, false, nil
}
