package viewstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/participation"
	"github.com/canopy-network/questview/pkg/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"
)

var (
	adminAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice     = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob       = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// fakeLedger is an in-memory quest board that enforces NotJoined -> Joined -> Submitted.
type fakeLedger struct {
	mu         sync.Mutex
	admin      common.Address
	quests     []ledger.Quest
	statuses   map[common.Address]map[ledger.QuestID]ledger.Status
	catalogErr error
	statusErr  error
	writes     int

	// When set, writes signal entered and then wait for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeLedger(quests ...ledger.Quest) *fakeLedger {
	return &fakeLedger{
		admin:    adminAddr,
		quests:   quests,
		statuses: map[common.Address]map[ledger.QuestID]ledger.Status{},
	}
}

func (f *fakeLedger) ReadAdmin(context.Context) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admin, nil
}

func (f *fakeLedger) ReadCatalog(context.Context) ([]ledger.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, &ledger.CatalogReadError{Index: 0, Err: f.catalogErr}
	}
	return append([]ledger.Quest{}, f.quests...), nil
}

func (f *fakeLedger) ReadStatus(_ context.Context, account common.Address, id ledger.QuestID) (ledger.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	return f.statuses[account][id], nil
}

func (f *fakeLedger) setCatalogErr(err error) {
	f.mu.Lock()
	f.catalogErr = err
	f.mu.Unlock()
}

func (f *fakeLedger) setStatusErr(err error) {
	f.mu.Lock()
	f.statusErr = err
	f.mu.Unlock()
}

func (f *fakeLedger) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeLedger) Join(ctx context.Context, signer *bind.TransactOpts, id ledger.QuestID) (ledger.Receipt, error) {
	return f.transition(ctx, signer, ledger.MethodJoin, id, ledger.NotJoined, ledger.Joined)
}

func (f *fakeLedger) Submit(ctx context.Context, signer *bind.TransactOpts, id ledger.QuestID) (ledger.Receipt, error) {
	return f.transition(ctx, signer, ledger.MethodSubmit, id, ledger.Joined, ledger.Submitted)
}

func (f *fakeLedger) transition(ctx context.Context, signer *bind.TransactOpts, method ledger.Method, id ledger.QuestID, from, to ledger.Status) (ledger.Receipt, error) {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return ledger.Receipt{}, &ledger.TransactionError{Method: method, QuestID: id, Kind: ledger.FailureNetworkFault, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if int(id) >= len(f.quests) {
		return ledger.Receipt{}, &ledger.TransactionError{Method: method, QuestID: id, Kind: ledger.FailureSimulationFailed, Err: errors.New("execution reverted: quest does not exist")}
	}
	if f.statuses[signer.From][id] != from {
		return ledger.Receipt{}, &ledger.TransactionError{Method: method, QuestID: id, Kind: ledger.FailureSimulationFailed, Err: errors.New("execution reverted: bad status")}
	}
	if f.statuses[signer.From] == nil {
		f.statuses[signer.From] = map[ledger.QuestID]ledger.Status{}
	}
	f.statuses[signer.From][id] = to
	if to == ledger.Joined {
		f.quests[id].ParticipantCount++
	}
	return ledger.Receipt{Method: method, QuestID: id, Account: signer.From, BlockNumber: uint64(f.writes)}, nil
}

type stubProvider struct {
	mu       sync.Mutex
	accounts []common.Address
}

func (p *stubProvider) Accounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accounts, nil
}

func (p *stubProvider) TransactOpts(_ context.Context, account common.Address) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account}, nil
}

func (p *stubProvider) switchTo(a common.Address) {
	p.mu.Lock()
	p.accounts = []common.Address{a}
	p.mu.Unlock()
}

type harness struct {
	ledger     *fakeLedger
	provider   *stubProvider
	session    *wallet.Session
	agg        *Aggregator
	dispatcher *Dispatcher
}

func newHarness(t *testing.T, l *fakeLedger, withProvider bool) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)

	h := &harness{ledger: l}
	var provider wallet.Provider
	if withProvider {
		h.provider = &stubProvider{accounts: []common.Address{alice}}
		provider = h.provider
	}
	h.session = wallet.NewSession(provider, logger)
	h.agg = NewAggregator(l, participation.NewResolver(l, pool, logger), h.session, logger)
	h.dispatcher = NewDispatcher(h.session, l, h.agg, logger, DispatcherOpts{WriteTimeout: 10 * time.Second, SyncTimeout: 10 * time.Second})
	return h
}

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	receipts  []ledger.Receipt
}

func (o *recordingObserver) SnapshotPublished(s *Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, s)
}

func (o *recordingObserver) TransactionFinalized(r ledger.Receipt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.receipts = append(o.receipts, r)
}
