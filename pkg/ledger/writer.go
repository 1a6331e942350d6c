package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Writer issues signed joinQuest/submitQuest calls and waits for their receipts.
// It never retries: a repeated join is rejected by the contract as already joined.
type Writer struct {
	contract Contract
	logger   *zap.Logger
	// finalizeTimeout bounds the wait for a receipt after broadcast.
	finalizeTimeout time.Duration
}

// NewWriter returns a Writer. A zero finalizeTimeout waits as long as ctx allows.
func NewWriter(contract Contract, logger *zap.Logger, finalizeTimeout time.Duration) *Writer {
	return &Writer{contract: contract, logger: logger, finalizeTimeout: finalizeTimeout}
}

func (w *Writer) Join(ctx context.Context, signer *bind.TransactOpts, id QuestID) (Receipt, error) {
	return w.write(ctx, signer, MethodJoin, id)
}

func (w *Writer) Submit(ctx context.Context, signer *bind.TransactOpts, id QuestID) (Receipt, error) {
	return w.write(ctx, signer, MethodSubmit, id)
}

func (w *Writer) write(ctx context.Context, signer *bind.TransactOpts, method Method, id QuestID) (Receipt, error) {
	if signer == nil {
		return Receipt{}, &TransactionError{Method: method, QuestID: id, Kind: FailureUserRejected, Err: errors.New("no signer")}
	}
	logger := w.logger.With(
		zap.String("method", string(method)),
		zap.Stringer("questId", id),
		zap.String("account", signer.From.Hex()),
	)

	tx, err := w.contract.Transact(ctx, signer, method, id)
	if err != nil {
		txErr := asTransactionError(method, id, FailureNetworkFault, err)
		logger.Error("transaction not dispatched", zap.String("kind", string(txErr.Kind)), zap.Error(txErr.Err))
		return Receipt{}, txErr
	}
	logger.Debug("transaction broadcast", zap.String("txHash", tx.Hash().Hex()))

	waitCtx := ctx
	if w.finalizeTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.finalizeTimeout)
		defer cancel()
	}
	receipt, err := w.contract.WaitMined(waitCtx, tx)
	if err != nil {
		logger.Error("transaction finalization unknown",
			zap.String("txHash", tx.Hash().Hex()),
			zap.Error(err))
		return Receipt{}, &TransactionError{
			Method:  method,
			QuestID: id,
			Kind:    FailureNetworkFault,
			Err:     fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err),
		}
	}

	out := Receipt{
		Method:  method,
		QuestID: id,
		Account: signer.From,
		TxHash:  tx.Hash(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Error("transaction reverted",
			zap.String("txHash", tx.Hash().Hex()),
			zap.Uint64("block", out.BlockNumber))
		return Receipt{}, &TransactionError{
			Method:  method,
			QuestID: id,
			Kind:    FailureReverted,
			Err:     fmt.Errorf("transaction %s reverted in block %d", tx.Hash().Hex(), out.BlockNumber),
		}
	}

	logger.Info("transaction finalized",
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("block", out.BlockNumber),
		zap.Uint64("gasUsed", out.GasUsed))
	return out, nil
}

func asTransactionError(method Method, id QuestID, kind FailureKind, err error) *TransactionError {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr
	}
	return &TransactionError{Method: method, QuestID: id, Kind: kind, Err: err}
}
