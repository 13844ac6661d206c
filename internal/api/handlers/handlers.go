// Package handlers implements the read API endpoints: health, order counts,
// and the daily volume rollup.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/models"
)

// Analytics is the slice of the analytics sink the read API serves from.
type Analytics interface {
	OrderCount(ctx context.Context, kind models.EventKind) (uint64, error)
	DailyVolume(ctx context.Context, q models.VolumeQuery) ([]models.DailyVolume, error)
	DefaultRange(ctx context.Context) (models.DateRange, error)
}

// Checkpoints reads the per-program signature windows the scanners maintain.
type Checkpoints interface {
	Get(ctx context.Context, program models.Program) (*models.SignatureWindow, error)
}

// validDate accepts YYYY-MM-DD plus longer timestamps starting with one.
func validDate(s string) bool {
	if len(s) < 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", s[:10])
	return err == nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a standard error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{
		Error: models.APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
