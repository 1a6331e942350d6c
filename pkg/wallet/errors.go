package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProvider means no signing identity is configured. Writes stay disabled.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrNotConnected means connect has not succeeded yet in this session.
	ErrNotConnected = errors.New("wallet not connected")
)

// ConnectionError wraps a provider failure during connect.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("wallet connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
