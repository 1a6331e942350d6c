package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/app/questview/types"
	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/participation"
	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/canopy-network/questview/pkg/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testToken = "test-token"

var operator = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

// board is a two-quest in-memory ledger. Writes optionally block on release.
type board struct {
	mu       sync.Mutex
	quests   []ledger.Quest
	statuses map[ledger.QuestID]ledger.Status
	entered  chan struct{}
	release  chan struct{}
}

func newBoard() *board {
	return &board{
		quests: []ledger.Quest{
			{ID: 0, Title: "Intro", RewardAmount: 10, RewardsAvailable: 5},
			{ID: 1, Title: "Bridge", RewardAmount: 25, RewardsAvailable: 1},
		},
		statuses: map[ledger.QuestID]ledger.Status{},
	}
}

func (b *board) ReadAdmin(context.Context) (common.Address, error) {
	return common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), nil
}

func (b *board) ReadCatalog(context.Context) ([]ledger.Quest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ledger.Quest{}, b.quests...), nil
}

func (b *board) ReadStatus(_ context.Context, _ common.Address, id ledger.QuestID) (ledger.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statuses[id], nil
}

func (b *board) Join(ctx context.Context, signer *bind.TransactOpts, id ledger.QuestID) (ledger.Receipt, error) {
	return b.move(ctx, signer, ledger.MethodJoin, id, ledger.NotJoined, ledger.Joined)
}

func (b *board) Submit(ctx context.Context, signer *bind.TransactOpts, id ledger.QuestID) (ledger.Receipt, error) {
	return b.move(ctx, signer, ledger.MethodSubmit, id, ledger.Joined, ledger.Submitted)
}

func (b *board) move(ctx context.Context, signer *bind.TransactOpts, method ledger.Method, id ledger.QuestID, from, to ledger.Status) (ledger.Receipt, error) {
	if b.entered != nil {
		b.entered <- struct{}{}
		select {
		case <-b.release:
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(id) >= len(b.quests) || b.statuses[id] != from {
		return ledger.Receipt{}, &ledger.TransactionError{Method: method, QuestID: id, Kind: ledger.FailureSimulationFailed, Err: errors.New("execution reverted")}
	}
	b.statuses[id] = to
	return ledger.Receipt{Method: method, QuestID: id, Account: signer.From, TxHash: common.HexToHash("0xabc"), BlockNumber: 12}, nil
}

type keyless struct{}

func (keyless) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{operator}, nil
}

func (keyless) TransactOpts(_ context.Context, account common.Address) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account}, nil
}

type testServer struct {
	app    *types.App
	board  *board
	ctler  *Controller
	server *httptest.Server
}

func newTestServer(t *testing.T, b *board, withProvider bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	pool := pond.NewPool(2)
	t.Cleanup(pool.StopAndWait)

	var provider wallet.Provider
	if withProvider {
		provider = keyless{}
	}
	session := wallet.NewSession(provider, logger)
	agg := viewstate.NewAggregator(b, participation.NewResolver(b, pool, logger), session, logger)

	app := &types.App{
		Config: types.Config{
			AdminToken:       testToken,
			OperatorUser:     "operator",
			OperatorPassword: "hunter2",
			SessionSecret:    "secret",
		},
		ReadPool:   pool,
		Aggregator: agg,
		Dispatcher: viewstate.NewDispatcher(session, b, agg, logger, viewstate.DispatcherOpts{}),
		Logger:     logger,
	}
	agg.Sync(context.Background(), viewstate.TriggerMount)

	ctler := NewController(app)
	router, err := ctler.NewRouter()
	require.NoError(t, err)
	srv := httptest.NewServer(WithCORS(router))
	t.Cleanup(srv.Close)
	return &testServer{app: app, board: b, ctler: ctler, server: srv}
}

func (s *testServer) do(t *testing.T, method, path, token string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
