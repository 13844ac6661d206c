package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/config"
	"github.com/dlnlabs/dln-indexer/internal/models"
)

// DailyVolumes serves the per-day order count and USD volume rollup for one
// event kind, optionally bounded by from/to dates.
func DailyVolumes(store Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		kind := models.EventKind(r.URL.Query().Get("eventType"))
		if !kind.Valid() {
			slog.Warn("invalid event type for daily volumes", "eventType", string(kind))
			writeError(w, http.StatusBadRequest, config.ErrorInvalidEventType,
				"eventType must be one of: created, fulfilled")
			return
		}

		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		for _, bound := range []string{from, to} {
			if bound != "" && !validDate(bound) {
				writeError(w, http.StatusBadRequest, config.ErrorInvalidDateRange,
					"dates must be YYYY-MM-DD: "+bound)
				return
			}
		}

		volumes, err := store.DailyVolume(r.Context(), models.VolumeQuery{
			EventType: kind,
			From:      from,
			To:        to,
		})
		if err != nil {
			slog.Error("daily volume query failed",
				"eventType", kind,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, config.ErrorVolumeQueryFailed,
				"failed to query daily volumes")
			return
		}
		if volumes == nil {
			volumes = []models.DailyVolume{}
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: volumes,
			Meta: &models.APIMeta{
				ExecutionTime: time.Since(start).Milliseconds(),
			},
		})
	}
}

// VolumeRange reports the [min, max] date span covered by the stored orders.
func VolumeRange(store Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rng, err := store.DefaultRange(r.Context())
		if err != nil {
			slog.Error("volume range query failed", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorVolumeQueryFailed,
				"failed to query volume range")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: rng,
			Meta: &models.APIMeta{
				ExecutionTime: time.Since(start).Milliseconds(),
			},
		})
	}
}
