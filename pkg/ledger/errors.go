package ledger

import (
	"errors"
	"fmt"
)

// ErrSignerRejected is wrapped by signers when the key holder declines to sign.
var ErrSignerRejected = errors.New("signer rejected the request")

// ErrReadIncomplete means a fanned-out read finished without every slot being filled.
var ErrReadIncomplete = errors.New("read did not complete")

// InvariantViolation means the ledger returned data this client cannot represent.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return "ledger invariant violation: " + e.Detail
}

// CatalogReadError fails a whole catalog read. Index is -1 when the count read failed.
type CatalogReadError struct {
	Index int64
	Err   error
}

func (e *CatalogReadError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("catalog read: next quest id: %v", e.Err)
	}
	return fmt.Sprintf("catalog read: quest %d: %v", e.Index, e.Err)
}

func (e *CatalogReadError) Unwrap() error { return e.Err }

// FailureKind says why a write failed. It is informational; every kind is surfaced the same way.
type FailureKind string

const (
	FailureUserRejected     FailureKind = "user-rejected"
	FailureSimulationFailed FailureKind = "simulation-failed"
	FailureReverted         FailureKind = "reverted"
	FailureNetworkFault     FailureKind = "network-fault"
)

// TransactionError is returned by every failed write.
type TransactionError struct {
	Method  Method
	QuestID QuestID
	Kind    FailureKind
	Err     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s(%d) %s: %v", e.Method, e.QuestID, e.Kind, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
