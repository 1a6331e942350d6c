package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract captures the calls this client makes against the quest board.
// Read methods need no signer; Transact needs one and only signs and broadcasts.
type Contract interface {
	Admin(ctx context.Context) (common.Address, error)
	NextQuestID(ctx context.Context) (uint64, error)
	Quest(ctx context.Context, index uint64) (Quest, error)
	PlayerQuestStatus(ctx context.Context, account common.Address, id QuestID) (uint8, error)
	Transact(ctx context.Context, opts *bind.TransactOpts, method Method, id QuestID) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Backend is satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Binding implements Contract on top of go-ethereum's bound contract.
type Binding struct {
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
}

// NewBinding binds the quest board at address.
func NewBinding(address common.Address, backend Backend) *Binding {
	return &Binding{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, QuestBoardABI, backend, backend, backend),
	}
}

// NewCaller binds the quest board for reads only, e.g. against a read replica.
func NewCaller(address common.Address, caller bind.ContractCaller) *Binding {
	return &Binding{
		address:  address,
		contract: bind.NewBoundContract(address, QuestBoardABI, caller, nil, nil),
	}
}

// Address returns the bound contract address.
func (b *Binding) Address() common.Address {
	return b.address
}

func (b *Binding) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

func (b *Binding) Admin(ctx context.Context) (common.Address, error) {
	out, err := b.call(ctx, "admin")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (b *Binding) NextQuestID(ctx context.Context) (uint64, error) {
	out, err := b.call(ctx, "nextQuestId")
	if err != nil {
		return 0, err
	}
	n := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return toUint64("nextQuestId", n)
}

func (b *Binding) Quest(ctx context.Context, index uint64) (Quest, error) {
	out, err := b.call(ctx, "quests", new(big.Int).SetUint64(index))
	if err != nil {
		return Quest{}, err
	}

	id, err := toUint64("questId", *abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
	if err != nil {
		return Quest{}, err
	}
	players, err := toUint64("numberOfPlayers", *abi.ConvertType(out[1], new(*big.Int)).(**big.Int))
	if err != nil {
		return Quest{}, err
	}
	rewards, err := toUint64("numberOfRewards", *abi.ConvertType(out[4], new(*big.Int)).(**big.Int))
	if err != nil {
		return Quest{}, err
	}

	return Quest{
		ID:               QuestID(id),
		ParticipantCount: players,
		Title:            *abi.ConvertType(out[2], new(string)).(*string),
		RewardAmount:     uint64(*abi.ConvertType(out[3], new(uint8)).(*uint8)),
		RewardsAvailable: rewards,
	}, nil
}

func (b *Binding) PlayerQuestStatus(ctx context.Context, account common.Address, id QuestID) (uint8, error) {
	out, err := b.call(ctx, "playerQuestStatuses", account, new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Transact simulates, signs and broadcasts method(id). Each phase maps to its own FailureKind.
// It returns once the node accepted the transaction; use WaitMined for finalization.
func (b *Binding) Transact(ctx context.Context, opts *bind.TransactOpts, method Method, id QuestID) (*types.Transaction, error) {
	if b.backend == nil {
		return nil, &TransactionError{Method: method, QuestID: id, Kind: FailureNetworkFault, Err: errors.New("binding is read-only")}
	}
	arg := new(big.Int).SetUint64(uint64(id))

	input, err := QuestBoardABI.Pack(string(method), arg)
	if err != nil {
		return nil, &TransactionError{Method: method, QuestID: id, Kind: FailureSimulationFailed, Err: err}
	}
	gas, err := b.backend.EstimateGas(ctx, ethereum.CallMsg{From: opts.From, To: &b.address, Data: input})
	if err != nil {
		return nil, &TransactionError{Method: method, QuestID: id, Kind: FailureSimulationFailed, Err: err}
	}

	signOpts := *opts
	signOpts.Context = ctx
	signOpts.GasLimit = gas
	signOpts.NoSend = true
	tx, err := b.contract.Transact(&signOpts, string(method), arg)
	if err != nil {
		kind := FailureNetworkFault
		if errors.Is(err, ErrSignerRejected) || errors.Is(err, bind.ErrNotAuthorized) {
			kind = FailureUserRejected
		}
		return nil, &TransactionError{Method: method, QuestID: id, Kind: kind, Err: err}
	}

	if err := b.backend.SendTransaction(ctx, tx); err != nil {
		return nil, &TransactionError{Method: method, QuestID: id, Kind: FailureNetworkFault, Err: err}
	}
	return tx, nil
}

// WaitMined blocks until tx has a receipt or ctx is done.
func (b *Binding) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if b.backend == nil {
		return nil, errors.New("binding is read-only")
	}
	return bind.WaitMined(ctx, b.backend, tx)
}

func toUint64(field string, n *big.Int) (uint64, error) {
	if n == nil || n.Sign() < 0 || !n.IsUint64() {
		return 0, &InvariantViolation{Detail: fmt.Sprintf("%s %v does not fit in uint64", field, n)}
	}
	return n.Uint64(), nil
}
