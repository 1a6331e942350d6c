package controller

import (
	"net/http"
	"strconv"

	"github.com/canopy-network/questview/pkg/viewstate"
	"go.uber.org/zap"
)

const (
	defaultReceiptLimit = 20
	maxReceiptLimit     = 200
)

// HandleSnapshot returns the current published snapshot. It never blocks on a running cycle.
func (c *Controller) HandleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Aggregator.Snapshot())
}

// HandleSync runs a manual sync cycle and returns the snapshot it published.
func (c *Controller) HandleSync(w http.ResponseWriter, r *http.Request) {
	snap := c.App.Aggregator.Sync(r.Context(), viewstate.TriggerManual)
	writeJSON(w, http.StatusOK, snap)
}

// HandleReceipts lists recently finalized writes kept in Redis.
func (c *Controller) HandleReceipts(w http.ResponseWriter, r *http.Request) {
	if c.App.Publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "receipt history not available (Redis disabled)"})
		return
	}

	limit := defaultReceiptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxReceiptLimit)
	}

	receipts, err := c.App.Publisher.RecentReceipts(r.Context(), int64(limit))
	if err != nil {
		c.App.Logger.Warn("Failed to read receipt history", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "receipt history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"receipts": receipts})
}
