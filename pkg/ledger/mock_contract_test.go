package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

type mockContract struct {
	mock.Mock
}

func (m *mockContract) Admin(ctx context.Context) (common.Address, error) {
	args := m.Called(ctx)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *mockContract) NextQuestID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockContract) Quest(ctx context.Context, index uint64) (Quest, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(Quest), args.Error(1)
}

func (m *mockContract) PlayerQuestStatus(ctx context.Context, account common.Address, id QuestID) (uint8, error) {
	args := m.Called(ctx, account, id)
	return args.Get(0).(uint8), args.Error(1)
}

func (m *mockContract) Transact(ctx context.Context, opts *bind.TransactOpts, method Method, id QuestID) (*types.Transaction, error) {
	args := m.Called(ctx, opts, method, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *mockContract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}
