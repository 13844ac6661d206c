package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

type statsData struct {
	Orders map[string]uint64 `json:"orders"`
}

// Stats returns the persisted order counts per event kind.
func Stats(store Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		counts := make(map[string]uint64, len(models.AllEventKinds))
		for _, kind := range models.AllEventKinds {
			n, err := store.OrderCount(r.Context(), kind)
			if err != nil {
				slog.Error("order count query failed",
					"kind", kind,
					"error", err,
				)
				writeError(w, http.StatusInternalServerError, config.ErrorStatsQueryFailed,
					"failed to count orders")
				return
			}
			counts[string(kind)] = n
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: statsData{Orders: counts},
			Meta: &models.APIMeta{
				ExecutionTime: time.Since(start).Milliseconds(),
			},
		})
	}
}
