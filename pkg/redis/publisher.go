package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink is the subset of Client the publisher writes through.
type Sink interface {
	Publish(ctx context.Context, channel string, message interface{})
	XAdd(ctx context.Context, stream string, values map[string]interface{}) string
	XRevRange(ctx context.Context, stream string, count int64) ([]redis.XMessage, error)
}

// SnapshotChannel is the Pub/Sub channel carrying every published snapshot of a board.
func SnapshotChannel(contract common.Address) string {
	return fmt.Sprintf("questview:%s:snapshot.published", strings.ToLower(contract.Hex()))
}

// ReceiptChannel is the Pub/Sub channel carrying finalized writes of a board.
func ReceiptChannel(contract common.Address) string {
	return fmt.Sprintf("questview:%s:tx.finalized", strings.ToLower(contract.Hex()))
}

// ReceiptStream is the capped stream keeping recent finalized writes of a board.
func ReceiptStream(contract common.Address) string {
	return fmt.Sprintf("questview:%s:receipts", strings.ToLower(contract.Hex()))
}

// Publisher fans aggregator events out to Redis. It implements viewstate.Observer.
type Publisher struct {
	sink     Sink
	contract common.Address
	timeout  time.Duration
	logger   *zap.Logger
}

func NewPublisher(sink Sink, contract common.Address, timeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{sink: sink, contract: contract, timeout: timeout, logger: logger}
}

// SnapshotPublished sends the snapshot JSON to the snapshot channel.
func (p *Publisher) SnapshotPublished(s *viewstate.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Warn("Failed to encode snapshot", zap.Uint64("generation", s.Generation), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	p.sink.Publish(ctx, SnapshotChannel(p.contract), payload)
}

// TransactionFinalized records the receipt on the stream and announces it.
func (p *Publisher) TransactionFinalized(r ledger.Receipt) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	values := receiptValues(r)
	id := p.sink.XAdd(ctx, ReceiptStream(p.contract), values)
	values["streamId"] = id
	payload, err := json.Marshal(values)
	if err != nil {
		p.logger.Warn("Failed to encode receipt", zap.String("txHash", r.TxHash.Hex()), zap.Error(err))
		return
	}
	p.sink.Publish(ctx, ReceiptChannel(p.contract), payload)
}

// RecentReceipts returns up to count finalized writes, newest first.
func (p *Publisher) RecentReceipts(ctx context.Context, count int64) ([]ledger.Receipt, error) {
	msgs, err := p.sink.XRevRange(ctx, ReceiptStream(p.contract), count)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Receipt, 0, len(msgs))
	for _, m := range msgs {
		r, err := parseReceipt(m.Values)
		if err != nil {
			p.logger.Debug("Skipping malformed receipt entry", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func receiptValues(r ledger.Receipt) map[string]interface{} {
	return map[string]interface{}{
		"method":      string(r.Method),
		"questId":     r.QuestID.String(),
		"account":     r.Account.Hex(),
		"txHash":      r.TxHash.Hex(),
		"blockNumber": strconv.FormatUint(r.BlockNumber, 10),
		"gasUsed":     strconv.FormatUint(r.GasUsed, 10),
	}
}

func parseReceipt(values map[string]interface{}) (ledger.Receipt, error) {
	get := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	id, err := ledger.ParseQuestID(get("questId"))
	if err != nil {
		return ledger.Receipt{}, err
	}
	block, err := strconv.ParseUint(get("blockNumber"), 10, 64)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("blockNumber: %w", err)
	}
	gas, err := strconv.ParseUint(get("gasUsed"), 10, 64)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("gasUsed: %w", err)
	}
	if !common.IsHexAddress(get("account")) {
		return ledger.Receipt{}, fmt.Errorf("account: invalid address %q", get("account"))
	}
	return ledger.Receipt{
		Method:      ledger.Method(get("method")),
		QuestID:     id,
		Account:     common.HexToAddress(get("account")),
		TxHash:      common.HexToHash(get("txHash")),
		BlockNumber: block,
		GasUsed:     gas,
	}, nil
}
