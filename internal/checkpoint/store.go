// Package checkpoint persists per-program signature windows so the indexer
// resumes exactly where it stopped.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// Store persists per-program signature windows across restarts. Get returns
// (nil, nil) when no window exists.
type Store interface {
	Get(ctx context.Context, program models.Program) (*models.SignatureWindow, error)
	Set(ctx context.Context, program models.Program, window *models.SignatureWindow) error
	Close() error
}

// RedisStore keeps windows as JSON values under one key per program.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// checkpointKey isolates the two program checkpoints by key.
func checkpointKey(program models.Program) string {
	return config.CheckpointKeyPrefix + string(program)
}

func (s *RedisStore) Get(ctx context.Context, program models.Program) (*models.SignatureWindow, error) {
	key := checkpointKey(program)
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint read %s: %w", key, err)
	}
	return decodeWindow(key, raw), nil
}

func (s *RedisStore) Set(ctx context.Context, program models.Program, window *models.SignatureWindow) error {
	data, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("checkpoint encode: %w", err)
	}
	key := checkpointKey(program)
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("checkpoint write %s: %w", key, err)
	}
	return nil
}

// Close is a no-op: the client is shared with the pricing cache and is
// closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}

// decodeWindow parses a persisted window. Unparseable or structurally empty
// payloads read as absent so a corrupt checkpoint degrades to a fresh start
// instead of wedging the scanner.
func decodeWindow(key, raw string) *models.SignatureWindow {
	var window models.SignatureWindow
	if err := json.Unmarshal([]byte(raw), &window); err != nil {
		slog.Warn("discarding corrupt checkpoint",
			"key", key,
			"error", fmt.Errorf("%w: %v", config.ErrCheckpointCorrupt, err),
		)
		return nil
	}
	if window.From.Signature == "" || window.To.Signature == "" {
		slog.Warn("discarding structurally empty checkpoint",
			"key", key,
			"error", config.ErrCheckpointCorrupt,
		)
		return nil
	}
	return &window
}
