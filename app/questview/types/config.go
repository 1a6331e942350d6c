package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

// SyncCronOff disables poll-triggered sync cycles.
const SyncCronOff = "off"

// Config is the process configuration, read from the environment.
type Config struct {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	Addr string `env:"ADDR" envDefault:":3003"`

	RPCEndpoints       []string      `env:"RPC_ENDPOINTS,required" envSeparator:","`
	RPCRPS             int           `env:"RPC_RPS" envDefault:"20"`
	RPCBurst           int           `env:"RPC_BURST" envDefault:"40"`
	RPCBreakerFailures int           `env:"RPC_BREAKER_FAILURES" envDefault:"3"`
	RPCBreakerCooldown time.Duration `env:"RPC_BREAKER_COOLDOWN" envDefault:"5s"`

	// ChainID 0 means discover it from the node.
	ChainID         int64  `env:"CHAIN_ID" envDefault:"0"`
	ContractAddress string `env:"CONTRACT_ADDRESS,required"`

	WalletPrivateKey         string `env:"WALLET_PRIVATE_KEY"`
	WalletKeystorePath       string `env:"WALLET_KEYSTORE_PATH"`
	WalletKeystorePassphrase string `env:"WALLET_KEYSTORE_PASSPHRASE"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"2m"`
	ReadParallelism int           `env:"READ_PARALLELISM" envDefault:"8"`
	MaxQuests       uint64        `env:"MAX_QUESTS" envDefault:"4096"`
	SyncCron        string        `env:"SYNC_CRON" envDefault:"*/30 * * * * *"`

	AdminToken       string `env:"ADMIN_TOKEN" envDefault:"devtoken"`
	OperatorUser     string `env:"OPERATOR_USER" envDefault:"operator"`
	OperatorPassword string `env:"OPERATOR_PASSWORD" envDefault:"operator"`
	SessionSecret    string `env:"SESSION_SECRET" envDefault:"change-me-please"`

	RedisEnabled bool `env:"REDIS_ENABLED" envDefault:"false"`
}

// LoadConfig parses and validates the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the process cannot start with.
func (c Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return errors.New("RPC_ENDPOINTS is empty")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS %q is not a hex address", c.ContractAddress)
	}
	if c.WalletPrivateKey != "" && c.WalletKeystorePath != "" {
		return errors.New("set only one of WALLET_PRIVATE_KEY and WALLET_KEYSTORE_PATH")
	}
	if c.ReadParallelism < 1 {
		return fmt.Errorf("READ_PARALLELISM must be positive, got %d", c.ReadParallelism)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("READ_TIMEOUT and WRITE_TIMEOUT must be positive")
	}
	return nil
}

// Contract returns the configured quest board address.
func (c Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// PollSpec returns the cron spec for poll cycles, or "" when polling is off.
func (c Config) PollSpec() string {
	if c.SyncCron == SyncCronOff {
		return ""
	}
	return c.SyncCron
}
