package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Provider exposes signing identities, the way a browser wallet exposes accounts.
type Provider interface {
	// Accounts returns the addresses the provider is willing to sign for, preferred first.
	Accounts(ctx context.Context) ([]common.Address, error)
	// TransactOpts returns a signer bound to account.
	TransactOpts(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// KeyProvider signs with a single in-memory secp256k1 key.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewKeyProvider builds a provider from a hex private key, with or without 0x prefix.
func NewKeyProvider(hexKey string, chainID *big.Int) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return newKeyProvider(key, chainID)
}

// NewKeystoreProvider decrypts a go-ethereum keystore JSON file.
func NewKeystoreProvider(path, passphrase string, chainID *big.Int) (*KeyProvider, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}
	k, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return newKeyProvider(k.PrivateKey, chainID)
}

func newKeyProvider(key *ecdsa.PrivateKey, chainID *big.Int) (*KeyProvider, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required to sign transactions")
	}
	return &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
	}, nil
}

func (p *KeyProvider) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) TransactOpts(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	if account != p.address {
		return nil, fmt.Errorf("account %s: %w", account.Hex(), ledger.ErrSignerRejected)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, p.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}
