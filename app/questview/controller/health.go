package controller

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string `json:"status"`
	SyncState     string `json:"syncState"`
	Generation    uint64 `json:"generation"`
	WritesEnabled bool   `json:"writesEnabled"`
	Writing       bool   `json:"writing"`
	Redis         string `json:"redis"`
}

// HandleHealth reports liveness plus a summary of the sync state. It never fails the probe
// on a stale snapshot.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := c.App.Aggregator.Snapshot()
	resp := healthResponse{
		Status:        "ok",
		SyncState:     c.App.Aggregator.State().String(),
		Generation:    snap.Generation,
		WritesEnabled: snap.WritesEnabled,
		Writing:       c.App.Dispatcher.Writing(),
		Redis:         "disabled",
	}
	if c.App.RedisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Redis = "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			resp.Redis = "error"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
