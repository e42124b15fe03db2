package controllers

import (
	"log/slog"
	"net/http"

	"postkeeper/app/services"
)

// SyncController triggers a feed import
type SyncController struct {
	syncService *services.SyncService
}

// NewSyncController creates a new SyncController
func NewSyncController(syncService *services.SyncService) *SyncController {
	return &SyncController{syncService: syncService}
}

// Sync imports the feed and responds with the posts it created. Posts
// created before a failure are reported in the error body as well.
func (sc *SyncController) Sync(w http.ResponseWriter, r *http.Request) {
	posts, result, err := sc.syncService.Run(r.Context())
	if err != nil {
		status := statusFor(err)
		slog.ErrorContext(r.Context(), "feed sync failed", "status", status, "created", result.Created, "error", err)
		sendJSON(w, status, map[string]interface{}{
			"error":   errorMessage(err, status),
			"created": result.Created,
			"posts":   posts,
		})
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"created":   result.Created,
		"refreshed": result.Refreshed,
		"skipped":   result.Skipped,
		"invalid":   result.Invalid,
		"posts":     posts,
	})
}
