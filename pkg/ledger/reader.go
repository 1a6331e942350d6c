package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/pkg/retry"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultMaxQuests is the catalog size above which nextQuestId is rejected.
const DefaultMaxQuests = 4096

// ReaderOpts configures a Reader.
type ReaderOpts struct {
	// Timeout bounds every single contract call, including each retry attempt.
	Timeout time.Duration
	Retry   retry.Config
	// MaxQuests caps nextQuestId; a larger count is treated as a misbehaving contract.
	MaxQuests uint64
}

// Reader is the read-only view of the quest board. It needs a provider, never a signer.
type Reader struct {
	contract Contract
	pool     pond.Pool
	logger   *zap.Logger
	opts     ReaderOpts
}

// NewReader returns a Reader that fans per-quest calls out over pool.
func NewReader(contract Contract, pool pond.Pool, logger *zap.Logger, opts ReaderOpts) *Reader {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxQuests == 0 {
		opts.MaxQuests = DefaultMaxQuests
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = retry.ReadConfig()
	}
	return &Reader{contract: contract, pool: pool, logger: logger, opts: opts}
}

// read runs one contract call under the per-call deadline, retrying transient failures.
func (r *Reader) read(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return retry.WithBackoff(ctx, r.opts.Retry, r.logger, operation, func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
		err := fn(callCtx)
		var iv *InvariantViolation
		if errors.As(err, &iv) {
			return retry.Permanent(err)
		}
		return err
	})
}

// ReadAdmin returns the contract's admin address.
func (r *Reader) ReadAdmin(ctx context.Context) (common.Address, error) {
	var admin common.Address
	err := r.read(ctx, "admin", func(ctx context.Context) error {
		var err error
		admin, err = r.contract.Admin(ctx)
		return err
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("read admin: %w", err)
	}
	return admin, nil
}

// ReadCatalog reads nextQuestId and then quests(i) for every i in [0, n), concurrently.
// The result is in index order. Any failed index fails the whole read; completed reads
// are discarded.
func (r *Reader) ReadCatalog(ctx context.Context) ([]Quest, error) {
	var n uint64
	err := r.read(ctx, "nextQuestId", func(ctx context.Context) error {
		var err error
		n, err = r.contract.NextQuestID(ctx)
		return err
	})
	if err != nil {
		return nil, &CatalogReadError{Index: -1, Err: err}
	}
	if n == 0 {
		return []Quest{}, nil
	}

	if n > r.opts.MaxQuests {
		err := &InvariantViolation{Detail: fmt.Sprintf("nextQuestId %d exceeds the limit of %d quests", n, r.opts.MaxQuests)}
		r.logger.Warn("catalog read refused", zap.Uint64("nextQuestId", n), zap.Error(err))
		return nil, &CatalogReadError{Index: -1, Err: err}
	}

	// Slots are guarded by mu: after a failure the group may stop waiting while
	// siblings are still running.
	var mu sync.Mutex
	quests := make([]Quest, n)
	errs := make([]error, n)
	done := make([]bool, n)

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group := r.pool.NewGroupContext(groupCtx)

	for i := uint64(0); i < n; i++ {
		i := i
		group.Submit(func() {
			var q Quest
			err := groupCtx.Err()
			if err == nil {
				err = r.read(groupCtx, "quests", func(ctx context.Context) error {
					var err error
					q, err = r.contract.Quest(ctx, i)
					if err != nil {
						return err
					}
					if uint64(q.ID) != i {
						return &InvariantViolation{Detail: fmt.Sprintf("quests(%d) returned quest id %d", i, q.ID)}
					}
					return nil
				})
			}
			if err != nil {
				cancel()
			}
			mu.Lock()
			quests[i], errs[i], done[i] = q, err, true
			mu.Unlock()
		})
	}

	waitErr := group.Wait()

	mu.Lock()
	defer mu.Unlock()
	idx, err := firstFailure(errs)
	if err == nil && waitErr != nil {
		// A task panicked or the pool stopped before running it.
		idx, err = firstPending(done), waitErr
	}
	if err == nil {
		if i := firstPending(done); i >= 0 {
			idx, err = i, ErrReadIncomplete
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.logger.Warn("catalog read failed",
			zap.Uint64("nextQuestId", n),
			zap.Int64("index", idx),
			zap.Error(err))
		return nil, &CatalogReadError{Index: idx, Err: err}
	}

	return quests, nil
}

// ReadStatus returns account's participation in quest id.
func (r *Reader) ReadStatus(ctx context.Context, account common.Address, id QuestID) (Status, error) {
	var status Status
	err := r.read(ctx, "playerQuestStatuses", func(ctx context.Context) error {
		code, err := r.contract.PlayerQuestStatus(ctx, account, id)
		if err != nil {
			return err
		}
		status, err = StatusFromCode(code)
		return err
	})
	if err != nil {
		return 0, err
	}
	return status, nil
}

// firstFailure picks the lowest-index error that is not a sibling cancellation, falling back
// to the first error of any kind.
func firstFailure(errs []error) (int64, error) {
	fallback := int64(-1)
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return int64(i), err
		}
		if fallback < 0 {
			fallback = int64(i)
		}
	}
	if fallback >= 0 {
		return fallback, errs[fallback]
	}
	return -1, nil
}

// firstPending returns the lowest index whose task never finished, or -1.
func firstPending(done []bool) int64 {
	for i, ok := range done {
		if !ok {
			return int64(i)
		}
	}
	return -1
}
