package chain

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// methodStats accumulates counters for one RPC method within a window.
type methodStats struct {
	Calls   int64
	Errors  int64
	Latency time.Duration
}

// Metrics counts per-method RPC calls, errors, and accumulated latency.
// Counters reset each time a snapshot is taken.
type Metrics struct {
	mu    sync.Mutex
	stats map[string]*methodStats
	since time.Time
}

// NewMetrics creates an empty metrics window.
func NewMetrics() *Metrics {
	return &Metrics{
		stats: make(map[string]*methodStats),
		since: time.Now(),
	}
}

// Record adds one call outcome to the current window.
func (m *Metrics) Record(method string, elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[method]
	if !ok {
		s = &methodStats{}
		m.stats[method] = s
	}
	s.Calls++
	s.Latency += elapsed
	if err != nil {
		s.Errors++
	}
}

// Snapshot returns the current window's counters and resets them.
func (m *Metrics) Snapshot() (map[string]methodStats, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := time.Since(m.since)
	out := make(map[string]methodStats, len(m.stats))
	for method, s := range m.stats {
		out[method] = *s
	}
	m.stats = make(map[string]*methodStats)
	m.since = time.Now()
	return out, window
}

// LogEvery logs and resets the metrics window on the given interval until
// ctx is cancelled. Meant to run as a goroutine.
func (m *Metrics) LogEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.log()
		}
	}
}

func (m *Metrics) log() {
	snapshot, window := m.Snapshot()
	if len(snapshot) == 0 {
		slog.Debug("rpc metrics window empty", "window", window.Round(time.Second))
		return
	}

	for method, s := range snapshot {
		avg := time.Duration(0)
		if s.Calls > 0 {
			avg = s.Latency / time.Duration(s.Calls)
		}
		slog.Info("rpc metrics",
			"method", method,
			"calls", s.Calls,
			"errors", s.Errors,
			"totalLatency", s.Latency.Round(time.Millisecond),
			"avgLatency", avg.Round(time.Millisecond),
			"window", window.Round(time.Second),
		)
	}
}
