package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/models"
)

const dateFormat = "2006-01-02"

// dateOnly keeps the YYYY-MM-DD prefix of a date-or-timestamp string so
// callers can pass either form to the volume filters.
func dateOnly(s string) string {
	if len(s) > len(dateFormat) {
		return s[:len(dateFormat)]
	}
	return s
}

// orderRow flattens an order into the column order of the insert batch.
func orderRow(o models.Order) []interface{} {
	return []interface{}{
		o.OrderID,
		o.Signature,
		time.Unix(o.BlockTime, 0).UTC(),
		o.USDValue,
		string(o.PricingStatus),
		o.PricingError,
		string(o.Kind),
	}
}

// Insert persists a batch of orders. Rows keyed by the same
// (order_id, event_type) collapse at merge time, so re-scanning a window
// never inflates counts.
func (s *Sink) Insert(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx,
		`INSERT INTO orders (order_id, tx_signature, block_time, usd_value, pricing_status, pricing_error, event_type)`)
	if err != nil {
		return fmt.Errorf("prepare orders batch: %w", err)
	}
	for _, o := range orders {
		if err := batch.Append(orderRow(o)...); err != nil {
			return fmt.Errorf("append order %s: %w", o.OrderID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send orders batch: %w", err)
	}
	return nil
}

// OrderCount reports how many distinct orders of one kind are stored.
// FINAL folds rows the merge has not collapsed yet.
func (s *Sink) OrderCount(ctx context.Context, kind models.EventKind) (uint64, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM orders FINAL WHERE event_type = ?`, string(kind))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s orders: %w", kind, err)
	}
	return count, nil
}

// volumeQuerySQL builds the daily volume statement. The view stores partial
// sums, so the read re-aggregates them.
func volumeQuerySQL(q models.VolumeQuery) (string, []interface{}) {
	query := `SELECT date, sum(order_count) AS order_count, sum(volume_usd) AS volume_usd
FROM daily_volumes_mv
WHERE event_type = ?`
	args := []interface{}{string(q.EventType)}
	if q.From != "" {
		query += ` AND date >= toDate(?)`
		args = append(args, dateOnly(q.From))
	}
	if q.To != "" {
		query += ` AND date <= toDate(?)`
		args = append(args, dateOnly(q.To))
	}
	query += ` GROUP BY date ORDER BY date`
	return query, args
}

// DailyVolume returns per-day order counts and USD volumes for one event
// kind, oldest day first.
func (s *Sink) DailyVolume(ctx context.Context, q models.VolumeQuery) ([]models.DailyVolume, error) {
	query, args := volumeQuerySQL(q)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily volumes: %w", err)
	}
	defer rows.Close()

	var out []models.DailyVolume
	for rows.Next() {
		var (
			day   time.Time
			count uint64
			usd   float64
		)
		if err := rows.Scan(&day, &count, &usd); err != nil {
			return nil, fmt.Errorf("scan daily volume: %w", err)
		}
		out = append(out, models.DailyVolume{
			Date:       day.Format(dateFormat),
			OrderCount: count,
			VolumeUSD:  usd,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read daily volumes: %w", err)
	}
	return out, nil
}

// DefaultRange reports the oldest and newest stored dates across all event
// kinds. Both fields are empty while the store has no rows.
func (s *Sink) DefaultRange(ctx context.Context) (models.DateRange, error) {
	var (
		minDate time.Time
		maxDate time.Time
		count   uint64
	)
	row := s.conn.QueryRow(ctx, `SELECT min(date), max(date), count() FROM daily_volumes_mv`)
	if err := row.Scan(&minDate, &maxDate, &count); err != nil {
		return models.DateRange{}, fmt.Errorf("query date range: %w", err)
	}
	if count == 0 {
		return models.DateRange{}, nil
	}
	return models.DateRange{
		From: minDate.Format(dateFormat),
		To:   maxDate.Format(dateFormat),
	}, nil
}
