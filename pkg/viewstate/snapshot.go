package viewstate

import (
	"encoding/json"
	"time"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/participation"
	"github.com/canopy-network/questview/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
)

// SyncState is the aggregator's position in its refresh cycle.
type SyncState int32

const (
	StateIdle SyncState = iota
	StateSyncing
	StateStale
)

func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger names what started a sync cycle.
type Trigger string

const (
	TriggerMount  Trigger = "mount"
	TriggerWallet Trigger = "wallet-change"
	TriggerWrite  Trigger = "post-write"
	TriggerPoll   Trigger = "poll"
	TriggerManual Trigger = "manual"
)

// Snapshot is one published view of the ledger. It is never modified after publication;
// a newer cycle publishes a new Snapshot instead.
type Snapshot struct {
	Generation uint64         `json:"generation"`
	Admin      common.Address `json:"admin"`
	Quests     []ledger.Quest `json:"quests"`
	// Statuses is nil when the wallet is disconnected. When set, every key is in Quests.
	Statuses      participation.Table `json:"statuses"`
	Wallet        wallet.State        `json:"wallet"`
	WritesEnabled bool                `json:"writesEnabled"`
	State         SyncState           `json:"state"`
	Trigger       Trigger             `json:"trigger"`
	LastError     string              `json:"lastError,omitempty"`
	SyncedAt      time.Time           `json:"syncedAt"`
}

// Stale reports whether the last cycle failed to refresh some part of the snapshot.
func (s *Snapshot) Stale() bool {
	return s.State == StateStale
}

// StatusRows returns the status table in catalog order, or nil when disconnected.
func (s *Snapshot) StatusRows() []participation.Row {
	if s.Statuses == nil {
		return nil
	}
	return s.Statuses.Rows(s.Quests)
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	return json.Marshal(struct {
		*plain
		StatusRows []participation.Row `json:"statusRows"`
	}{
		plain:      (*plain)(s),
		StatusRows: s.StatusRows(),
	})
}

// consistent reports whether table only names quests present in quests.
func consistent(table participation.Table, quests []ledger.Quest) bool {
	if table == nil {
		return true
	}
	ids := make(map[ledger.QuestID]struct{}, len(quests))
	for _, q := range quests {
		ids[q.ID] = struct{}{}
	}
	for id := range table {
		if _, ok := ids[id]; !ok {
			return false
		}
	}
	return true
}
