package viewstate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Writer performs the two state-changing calls.
type Writer interface {
	Join(ctx context.Context, signer *bind.TransactOpts, id ledger.QuestID) (ledger.Receipt, error)
	Submit(ctx context.Context, signer *bind.TransactOpts, id ledger.QuestID) (ledger.Receipt, error)
}

// Session is the wallet session as seen by the command layer.
type Session interface {
	Connect(ctx context.Context) (common.Address, bool, error)
	Signer(ctx context.Context) (*bind.TransactOpts, error)
}

// Dispatcher implements the commands exposed to the presentation layer.
// At most one write is in flight per session; a second one is rejected, not queued.
type Dispatcher struct {
	session Session
	writer  Writer
	agg     *Aggregator
	logger  *zap.Logger
	opts    DispatcherOpts

	writing atomic.Bool
}

// DispatcherOpts bounds the work a dispatch does after it outlives its caller.
// A zero duration leaves that step unbounded.
type DispatcherOpts struct {
	// WriteTimeout bounds signing, broadcast and finalization of one write.
	WriteTimeout time.Duration
	// SyncTimeout bounds the post-write sync cycle.
	SyncTimeout time.Duration
}

func NewDispatcher(session Session, writer Writer, agg *Aggregator, logger *zap.Logger, opts DispatcherOpts) *Dispatcher {
	return &Dispatcher{session: session, writer: writer, agg: agg, logger: logger, opts: opts}
}

// ConnectWallet connects (or re-connects) the session. A new or switched account starts a
// sync cycle so the snapshot carries that account's statuses.
func (d *Dispatcher) ConnectWallet(ctx context.Context) (*Snapshot, error) {
	account, changed, err := d.session.Connect(ctx)
	if err != nil {
		d.logger.Warn("wallet connect failed", zap.Error(err))
		return d.agg.Snapshot(), err
	}
	if !changed {
		return d.agg.Snapshot(), nil
	}
	d.logger.Info("wallet changed, resyncing", zap.String("account", account.Hex()))
	return d.agg.Sync(ctx, TriggerWallet), nil
}

// DispatchJoin joins the quest named by raw user input.
func (d *Dispatcher) DispatchJoin(ctx context.Context, raw string) (ledger.Receipt, error) {
	return d.dispatch(ctx, ledger.MethodJoin, raw)
}

// DispatchSubmit submits the quest named by raw user input.
func (d *Dispatcher) DispatchSubmit(ctx context.Context, raw string) (ledger.Receipt, error) {
	return d.dispatch(ctx, ledger.MethodSubmit, raw)
}

// Writing reports whether a write is currently awaiting finalization.
func (d *Dispatcher) Writing() bool {
	return d.writing.Load()
}

func (d *Dispatcher) dispatch(ctx context.Context, method ledger.Method, raw string) (ledger.Receipt, error) {
	id, err := ledger.ParseQuestID(raw)
	if err != nil {
		return ledger.Receipt{}, &InvalidInputError{Input: raw, Err: err}
	}

	if !d.writing.CompareAndSwap(false, true) {
		d.logger.Warn("write rejected, another is in flight",
			zap.String("method", string(method)),
			zap.Stringer("questId", id))
		return ledger.Receipt{}, ErrWriteInProgress
	}
	// A broadcast transaction cannot be recalled, so the gate stays closed until the
	// write is acknowledged or times out even if the caller goes away.
	writeCtx, cancel := detached(ctx, d.opts.WriteTimeout)
	receipt, err := d.write(writeCtx, method, id)
	cancel()
	d.writing.Store(false)
	if err != nil {
		return ledger.Receipt{}, err
	}

	d.agg.finalized(receipt)
	// The cycle starts only after the receipt, so it observes the new status.
	syncCtx, cancel := detached(ctx, d.opts.SyncTimeout)
	defer cancel()
	d.agg.Sync(syncCtx, TriggerWrite)
	return receipt, nil
}

// detached keeps ctx's values but not its cancellation, bounded by timeout when set.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (d *Dispatcher) write(ctx context.Context, method ledger.Method, id ledger.QuestID) (ledger.Receipt, error) {
	signer, err := d.session.Signer(ctx)
	if err != nil {
		return ledger.Receipt{}, err
	}
	switch method {
	case ledger.MethodJoin:
		return d.writer.Join(ctx, signer, id)
	default:
		return d.writer.Submit(ctx, signer, id)
	}
}
