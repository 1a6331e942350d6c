package viewstate

import (
	"errors"
	"fmt"
)

// ErrWriteInProgress rejects a write while another one from this session is unacknowledged.
var ErrWriteInProgress = errors.New("another write is in progress")

// InvalidInputError rejects a command before anything is sent to the ledger.
type InvalidInputError struct {
	Input string
	Err   error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %v", e.Input, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }
