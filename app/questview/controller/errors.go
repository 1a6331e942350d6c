package controller

import (
	"errors"
	"net/http"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/canopy-network/questview/pkg/wallet"
	"github.com/go-jose/go-jose/v4/json"
)

// errorBody is the JSON shape of every failed command.
type errorBody struct {
	Error string             `json:"error"`
	Kind  ledger.FailureKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps command errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		invalid *viewstate.InvalidInputError
		txErr   *ledger.TransactionError
		connErr *wallet.ConnectionError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, viewstate.ErrWriteInProgress):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrNoProvider), errors.Is(err, wallet.ErrNotConnected):
		return http.StatusPreconditionFailed
	case errors.As(err, &txErr):
		return http.StatusBadGateway
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var txErr *ledger.TransactionError
	if errors.As(err, &txErr) {
		body.Kind = txErr.Kind
	}
	writeJSON(w, statusFor(err), body)
}
