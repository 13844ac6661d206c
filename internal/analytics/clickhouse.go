// Package analytics persists enriched orders into ClickHouse and answers
// the aggregate volume queries the read API serves.
package analytics

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/dlnlabs/dln-indexer/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sink is the ClickHouse-backed analytics store shared by both scanners and
// the read API.
type Sink struct {
	conn driver.Conn
}

// Open connects to ClickHouse, verifies the connection, and applies pending
// schema migrations.
func Open(ctx context.Context, cfg *config.Config) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseHost},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		DialTimeout: config.ClickHouseDialTimeout,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrClickHouseUnavailable, err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", config.ErrClickHouseUnavailable, err)
	}

	sink := &Sink{conn: conn}
	if err := sink.runMigrations(ctx); err != nil {
		return nil, err
	}

	slog.Info("analytics sink ready",
		"host", cfg.ClickHouseHost,
		"database", cfg.ClickHouseDatabase,
	)
	return sink, nil
}

// runMigrations applies all pending SQL migration files from the embedded
// filesystem. ClickHouse has no DDL transactions, so every migration file
// holds a single idempotent statement.
func (s *Sink) runMigrations(ctx context.Context) error {
	if err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    UInt32,
			file       String,
			applied_at DateTime DEFAULT now()
		)
		ENGINE = ReplacingMergeTree
		ORDER BY version
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	// Sort migrations by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Extract version number from filename (e.g., "001_orders.sql" -> 1)
		var version uint32
		if _, err := fmt.Sscanf(entry.Name(), "%d", &version); err != nil {
			slog.Warn("skipping migration with unparseable version", "file", entry.Name())
			continue
		}

		var count uint64
		if err := s.conn.QueryRow(ctx,
			"SELECT count() FROM schema_migrations WHERE version = ?", version,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration status for version %d: %w", version, err)
		}
		if count > 0 {
			slog.Debug("migration already applied", "version", version, "file", entry.Name())
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if err := s.conn.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
		if err := s.conn.Exec(ctx,
			"INSERT INTO schema_migrations (version, file) VALUES (?, ?)", version, entry.Name(),
		); err != nil {
			return fmt.Errorf("record migration %d: %w", version, err)
		}

		slog.Info("migration applied", "version", version, "file", entry.Name())
	}

	return nil
}

// Close releases the ClickHouse connection pool.
func (s *Sink) Close() error {
	return s.conn.Close()
}
