package controller

import (
	"context"
	"net/http"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/gorilla/mux"
)

type commandResponse struct {
	Receipt  ledger.Receipt      `json:"receipt"`
	Snapshot *viewstate.Snapshot `json:"snapshot"`
}

// HandleConnectWallet connects or re-connects the wallet session.
func (c *Controller) HandleConnectWallet(w http.ResponseWriter, r *http.Request) {
	snap, err := c.App.Dispatcher.ConnectWallet(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleJoin joins the quest named by the {id} path segment.
func (c *Controller) HandleJoin(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.App.Dispatcher.DispatchJoin)
}

// HandleSubmit submits the quest named by the {id} path segment.
func (c *Controller) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.App.Dispatcher.DispatchSubmit)
}

// command hands the raw path segment to the dispatcher, which owns validation.
func (c *Controller) command(w http.ResponseWriter, r *http.Request, dispatch func(ctx context.Context, raw string) (ledger.Receipt, error)) {
	raw := mux.Vars(r)["id"]
	receipt, err := dispatch(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Receipt: receipt, Snapshot: c.App.Aggregator.Snapshot()})
}
