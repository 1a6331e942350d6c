package participation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrNoAccount is returned when Resolve is asked to resolve for the zero address.
var ErrNoAccount = errors.New("no connected account")

// StatusReader reads one account's status for one quest.
type StatusReader interface {
	ReadStatus(ctx context.Context, account common.Address, id ledger.QuestID) (ledger.Status, error)
}

// StatusReadError fails a whole resolution and names the quest whose status read failed.
type StatusReadError struct {
	QuestID ledger.QuestID
	Err     error
}

func (e *StatusReadError) Error() string {
	return fmt.Sprintf("status read: quest %d: %v", e.QuestID, e.Err)
}

func (e *StatusReadError) Unwrap() error { return e.Err }

// Entry is one row of the status table.
type Entry struct {
	Title  string        `json:"title"`
	Status ledger.Status `json:"status"`
}

// Table maps every quest of one catalog generation to the account's status in it.
type Table map[ledger.QuestID]Entry

// Row is an Entry with its key, for rendering in catalog order.
type Row struct {
	QuestID ledger.QuestID `json:"questId"`
	Entry
}

// Rows returns the table in the order of catalog. Quests missing from the table are skipped.
func (t Table) Rows(catalog []ledger.Quest) []Row {
	rows := make([]Row, 0, len(t))
	for _, q := range catalog {
		if e, ok := t[q.ID]; ok {
			rows = append(rows, Row{QuestID: q.ID, Entry: e})
		}
	}
	return rows
}

// Resolver joins a catalog with per-account statuses.
type Resolver struct {
	reader StatusReader
	pool   pond.Pool
	logger *zap.Logger
}

func NewResolver(reader StatusReader, pool pond.Pool, logger *zap.Logger) *Resolver {
	return &Resolver{reader: reader, pool: pool, logger: logger}
}

// Resolve reads account's status for every quest in catalog. The table is built from the
// catalog it is given, never from a separately fetched count, so it always has exactly
// len(catalog) entries. A single failed read fails the whole call.
func (r *Resolver) Resolve(ctx context.Context, account common.Address, catalog []ledger.Quest) (Table, error) {
	if account == (common.Address{}) {
		return nil, ErrNoAccount
	}
	if len(catalog) == 0 {
		return Table{}, nil
	}

	// Slots are guarded by mu: after a failure the group may stop waiting while
	// siblings are still running.
	var mu sync.Mutex
	statuses := make([]ledger.Status, len(catalog))
	errs := make([]error, len(catalog))
	done := make([]bool, len(catalog))

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group := r.pool.NewGroupContext(groupCtx)

	for i := range catalog {
		i := i
		group.Submit(func() {
			var status ledger.Status
			err := groupCtx.Err()
			if err == nil {
				status, err = r.reader.ReadStatus(groupCtx, account, catalog[i].ID)
			}
			if err != nil {
				cancel()
			}
			mu.Lock()
			statuses[i], errs[i], done[i] = status, err, true
			mu.Unlock()
		})
	}

	waitErr := group.Wait()

	mu.Lock()
	defer mu.Unlock()
	i, err := firstFailure(errs)
	if err == nil && waitErr != nil {
		// A task panicked or the pool stopped before running it.
		i, err = max(firstPending(done), 0), waitErr
	}
	if err == nil {
		if p := firstPending(done); p >= 0 {
			i, err = p, ledger.ErrReadIncomplete
		}
	}
	if err == nil && ctx.Err() != nil {
		i, err = 0, ctx.Err()
	}
	if err != nil {
		id := catalog[i].ID
		r.logger.Warn("status resolution failed",
			zap.String("account", account.Hex()),
			zap.Stringer("questId", id),
			zap.Error(err))
		return nil, &StatusReadError{QuestID: id, Err: err}
	}

	table := make(Table, len(catalog))
	for i, q := range catalog {
		if _, dup := table[q.ID]; dup {
			return nil, &ledger.InvariantViolation{Detail: fmt.Sprintf("quest id %d appears twice in catalog", q.ID)}
		}
		table[q.ID] = Entry{Title: q.Title, Status: statuses[i]}
	}
	return table, nil
}

// firstFailure prefers a real failure over the cancellations it caused in sibling reads.
func firstFailure(errs []error) (int, error) {
	fallback := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return i, err
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback >= 0 {
		return fallback, errs[fallback]
	}
	return -1, nil
}

// firstPending returns the lowest index whose task never finished, or -1.
func firstPending(done []bool) int {
	for i, ok := range done {
		if !ok {
			return i
		}
	}
	return -1
}
