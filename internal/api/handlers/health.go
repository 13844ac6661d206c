package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/models"
)

// Health reports process liveness, uptime, and which programs already have an
// indexed checkpoint window.
func Health(version string, started time.Time, checkpoints Checkpoints) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		present := make(map[string]bool, len(models.AllPrograms))
		for _, program := range models.AllPrograms {
			window, err := checkpoints.Get(r.Context(), program)
			if err != nil {
				slog.Warn("health checkpoint read failed",
					"program", program,
					"error", err,
				)
			}
			present[string(program)] = window != nil
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"version":     version,
			"uptime":      time.Since(started).Round(time.Second).String(),
			"checkpoints": present,
		})
	}
}
