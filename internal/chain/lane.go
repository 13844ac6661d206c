package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// requestLane paces and serializes requests to the RPC endpoint. The token
// bucket has burst 1 so requests spread evenly across the second, and the
// mutex keeps a single request in flight, so latency stays attributable to
// individual calls.
type requestLane struct {
	limiter *rate.Limiter
	mu      sync.Mutex
}

func newRequestLane(rps int) *requestLane {
	return &requestLane{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// enter blocks until the endpoint budget grants the next slot and the lane
// is free. Every successful enter must be paired with a leave.
func (l *requestLane) enter(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	return nil
}

// leave frees the lane for the next request.
func (l *requestLane) leave() {
	l.mu.Unlock()
}
