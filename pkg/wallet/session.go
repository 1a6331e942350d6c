package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// State is the observable wallet state: Disconnected, or Connected with an address.
type State struct {
	Connected bool           `json:"connected"`
	Address   common.Address `json:"address"`
}

// Session tracks the active signing identity. It is created disconnected and only an
// explicit Connect moves it to connected; there is no programmatic disconnect.
type Session struct {
	provider Provider
	logger   *zap.Logger

	mu      sync.RWMutex
	account *common.Address
}

// NewSession returns a disconnected session. provider may be nil.
func NewSession(provider Provider, logger *zap.Logger) *Session {
	return &Session{provider: provider, logger: logger}
}

// HasProvider reports whether writes can ever be enabled in this session.
func (s *Session) HasProvider() bool {
	return s.provider != nil
}

// Connect asks the provider for accounts and adopts the first one. Calling it again picks
// up an account switch made in the provider; changed reports whether the identity moved.
func (s *Session) Connect(ctx context.Context) (account common.Address, changed bool, err error) {
	if s.provider == nil {
		return common.Address{}, false, ErrNoProvider
	}

	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return common.Address{}, false, &ConnectionError{Err: err}
	}
	if len(accounts) == 0 {
		return common.Address{}, false, &ConnectionError{Err: errors.New("provider returned no accounts")}
	}
	account = accounts[0]

	s.mu.Lock()
	changed = s.account == nil || *s.account != account
	s.account = &account
	s.mu.Unlock()

	if changed {
		s.logger.Info("wallet connected", zap.String("account", account.Hex()))
	}
	return account, changed, nil
}

// State returns the current wallet state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return State{}
	}
	return State{Connected: true, Address: *s.account}
}

// Signer returns transaction options for the connected account.
func (s *Session) Signer(ctx context.Context) (*bind.TransactOpts, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}
	st := s.State()
	if !st.Connected {
		return nil, ErrNotConnected
	}
	return s.provider.TransactOpts(ctx, st.Address)
}
