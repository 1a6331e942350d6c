package viewstate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/participation"
	"github.com/canopy-network/questview/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// CatalogReader reads the contract-wide part of the view.
type CatalogReader interface {
	ReadAdmin(ctx context.Context) (common.Address, error)
	ReadCatalog(ctx context.Context) ([]ledger.Quest, error)
}

// StatusResolver builds the per-account status table for a catalog.
type StatusResolver interface {
	Resolve(ctx context.Context, account common.Address, catalog []ledger.Quest) (participation.Table, error)
}

// WalletState is the part of the wallet session the aggregator observes.
type WalletState interface {
	State() wallet.State
	HasProvider() bool
}

// Observer is told about every published snapshot and every finalized write.
// Calls are made synchronously from the publishing goroutine.
type Observer interface {
	SnapshotPublished(s *Snapshot)
	TransactionFinalized(r ledger.Receipt)
}

// Aggregator owns the single published Snapshot and the sync cycle that replaces it.
type Aggregator struct {
	reader   CatalogReader
	resolver StatusResolver
	wallet   WalletState
	logger   *zap.Logger
	now      func() time.Time

	syncMu  sync.Mutex
	current atomic.Pointer[Snapshot]
	state   atomic.Int32

	nextSubID   atomic.Uint64
	subscribers *xsync.Map[uint64, chan *Snapshot]

	observerMu sync.RWMutex
	observers  []Observer
}

// NewAggregator publishes an empty generation-0 snapshot; call Sync to populate it.
func NewAggregator(reader CatalogReader, resolver StatusResolver, w WalletState, logger *zap.Logger) *Aggregator {
	a := &Aggregator{
		reader:      reader,
		resolver:    resolver,
		wallet:      w,
		logger:      logger,
		now:         time.Now,
		subscribers: xsync.NewMap[uint64, chan *Snapshot](),
	}
	a.current.Store(&Snapshot{
		Quests:        []ledger.Quest{},
		Wallet:        w.State(),
		WritesEnabled: w.HasProvider(),
		State:         StateIdle,
	})
	return a
}

// Snapshot returns the latest published snapshot. It is safe to share and must not be mutated.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.current.Load()
}

// State returns idle, syncing or stale.
func (a *Aggregator) State() SyncState {
	return SyncState(a.state.Load())
}

// Observe registers o for all future publications.
func (a *Aggregator) Observe(o Observer) {
	a.observerMu.Lock()
	defer a.observerMu.Unlock()
	a.observers = append(a.observers, o)
}

// Subscribe returns a channel that always holds the most recent snapshot not yet received.
// Slow receivers skip intermediate generations. Call the returned func to unsubscribe.
func (a *Aggregator) Subscribe() (<-chan *Snapshot, func()) {
	id := a.nextSubID.Add(1)
	ch := make(chan *Snapshot, 1)
	a.subscribers.Store(id, ch)
	return ch, func() { a.subscribers.Delete(id) }
}

// Sync runs one sync cycle and returns the snapshot it published. Cycles never interleave;
// a trigger that arrives mid-cycle runs after it. Read failures keep the previous data and
// mark the snapshot stale instead of returning an error.
func (a *Aggregator) Sync(ctx context.Context, trigger Trigger) *Snapshot {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	a.state.Store(int32(StateSyncing))
	start := a.now()
	prev := a.current.Load()
	ws := a.wallet.State()
	logger := a.logger.With(zap.String("trigger", string(trigger)), zap.Uint64("generation", prev.Generation+1))

	next := &Snapshot{
		Generation:    prev.Generation + 1,
		Admin:         prev.Admin,
		Quests:        prev.Quests,
		Wallet:        ws,
		WritesEnabled: a.wallet.HasProvider(),
		Trigger:       trigger,
	}
	var failures []string

	if admin, err := a.reader.ReadAdmin(ctx); err != nil {
		logger.Warn("admin read failed, keeping previous", zap.Error(err))
		failures = append(failures, err.Error())
	} else {
		next.Admin = admin
	}

	if quests, err := a.reader.ReadCatalog(ctx); err != nil {
		logger.Warn("catalog read failed, keeping previous catalog",
			zap.Int("previousQuests", len(prev.Quests)),
			zap.Error(err))
		failures = append(failures, err.Error())
	} else {
		next.Quests = quests
	}

	if ws.Connected {
		table, err := a.resolver.Resolve(ctx, ws.Address, next.Quests)
		if err != nil {
			failures = append(failures, err.Error())
			if prev.Wallet == ws && consistent(prev.Statuses, next.Quests) {
				next.Statuses = prev.Statuses
			}
			logger.Warn("status resolution failed",
				zap.String("account", ws.Address.Hex()),
				zap.Bool("keptPrevious", next.Statuses != nil),
				zap.Error(err))
		} else {
			next.Statuses = table
		}
	}

	next.State = StateIdle
	if len(failures) > 0 {
		next.State = StateStale
		next.LastError = strings.Join(failures, "; ")
	}
	next.SyncedAt = a.now()

	a.current.Store(next)
	a.state.Store(int32(next.State))
	logger.Debug("snapshot published",
		zap.String("state", next.State.String()),
		zap.Int("quests", len(next.Quests)),
		zap.Int("statuses", len(next.Statuses)),
		zap.Duration("took", next.SyncedAt.Sub(start)))

	a.broadcast(next)
	return next
}

func (a *Aggregator) broadcast(s *Snapshot) {
	a.subscribers.Range(func(_ uint64, ch chan *Snapshot) bool {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
		return true
	})

	a.observerMu.RLock()
	defer a.observerMu.RUnlock()
	for _, o := range a.observers {
		o.SnapshotPublished(s)
	}
}

func (a *Aggregator) finalized(r ledger.Receipt) {
	a.observerMu.RLock()
	defer a.observerMu.RUnlock()
	for _, o := range a.observers {
		o.TransactionFinalized(r)
	}
}
