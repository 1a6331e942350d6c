package ledger

import (
	"fmt"
)

// Status is a player's participation in one quest.
type Status uint8

const (
	NotJoined Status = iota
	Joined
	Submitted
)

// StatusFromCode maps the contract's enum code onto Status.
// Codes outside {0,1,2} mean the contract and this client disagree about the enum, which is
// reported as an InvariantViolation rather than coerced to a default.
func StatusFromCode(code uint8) (Status, error) {
	switch code {
	case 0:
		return NotJoined, nil
	case 1:
		return Joined, nil
	case 2:
		return Submitted, nil
	default:
		return 0, &InvariantViolation{Detail: fmt.Sprintf("unknown participation status code %d", code)}
	}
}

func (s Status) String() string {
	switch s {
	case NotJoined:
		return "Not Joined"
	case Joined:
		return "Joined"
	case Submitted:
		return "Submitted"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case NotJoined, Joined, Submitted:
		return []byte(s.String()), nil
	default:
		return nil, &InvariantViolation{Detail: fmt.Sprintf("unknown participation status %d", uint8(s))}
	}
}
