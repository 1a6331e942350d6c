package questview

import (
	"context"
	"math/big"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/app/questview/types"
	"github.com/canopy-network/questview/pkg/ledger"
	"github.com/canopy-network/questview/pkg/logging"
	"github.com/canopy-network/questview/pkg/participation"
	"github.com/canopy-network/questview/pkg/redis"
	"github.com/canopy-network/questview/pkg/retry"
	"github.com/canopy-network/questview/pkg/rpc"
	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/canopy-network/questview/pkg/wallet"
	"go.uber.org/zap"
)

// Initialize initializes the application and runs the mount sync cycle.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := types.LoadConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	client, err := rpc.Dial(ctx, rpc.Opts{
		Endpoints:       cfg.RPCEndpoints,
		RPS:             cfg.RPCRPS,
		Burst:           cfg.RPCBurst,
		BreakerFailures: cfg.RPCBreakerFailures,
		BreakerCooldown: cfg.RPCBreakerCooldown,
	}, cfg.ReadTimeout)
	if err != nil {
		logger.Fatal("Unable to connect to node", zap.Error(err))
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		idCtx, cancel := context.WithTimeout(ctx, cfg.ReadTimeout)
		chainID, err = client.ChainID(idCtx)
		cancel()
		if err != nil {
			logger.Fatal("Unable to discover chain id", zap.Error(err))
		}
	}

	provider, err := newProvider(cfg, chainID)
	if err != nil {
		logger.Fatal("Unable to load wallet key", zap.Error(err))
	}
	if provider == nil {
		logger.Warn("No wallet key configured, writes are disabled")
	}

	binding := ledger.NewBinding(cfg.Contract(), client)
	pool := pond.NewPool(cfg.ReadParallelism, pond.WithContext(ctx))

	reader := ledger.NewReader(binding, pool, logger, ledger.ReaderOpts{
		Timeout:   cfg.ReadTimeout,
		Retry:     retry.ReadConfig(),
		MaxQuests: cfg.MaxQuests,
	})
	writer := ledger.NewWriter(binding, logger, cfg.WriteTimeout)
	session := wallet.NewSession(provider, logger)
	resolver := participation.NewResolver(reader, pool, logger)
	agg := viewstate.NewAggregator(reader, resolver, session, logger)
	dispatcher := viewstate.NewDispatcher(session, writer, agg, logger, viewstate.DispatcherOpts{
		WriteTimeout: cfg.WriteTimeout + cfg.ReadTimeout,
		SyncTimeout:  cfg.ReadTimeout * 3,
	})

	app := &types.App{
		Config:     cfg,
		Client:     client,
		ReadPool:   pool,
		Aggregator: agg,
		Dispatcher: dispatcher,
		Logger:     logger,
	}

	// Initialize Redis client for cross-process change notifications (optional)
	if cfg.RedisEnabled {
		redisClient, err := redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - change notifications will be disabled",
				zap.Error(err))
		} else {
			app.RedisClient = redisClient
			app.Publisher = redis.NewPublisher(redisClient, cfg.Contract(), 3*time.Second, logger)
			agg.Observe(app.Publisher)
			logger.Info("Redis client initialized for change notifications")
		}
	} else {
		logger.Info("Redis disabled - change notifications will not be published")
	}

	app.Scheduler, err = viewstate.NewScheduler(ctx, agg, cfg.PollSpec(), cfg.ReadTimeout*3, logger)
	if err != nil {
		logger.Fatal("Invalid SYNC_CRON", zap.String("spec", cfg.SyncCron), zap.Error(err))
	}

	mountCtx, cancel := context.WithTimeout(ctx, cfg.ReadTimeout*3)
	snap := agg.Sync(mountCtx, viewstate.TriggerMount)
	cancel()
	logger.Info("Initial sync finished",
		zap.Stringer("contract", cfg.Contract()),
		zap.Stringer("chainId", chainID),
		zap.Int("quests", len(snap.Quests)),
		zap.Bool("stale", snap.Stale()))

	return app
}

// newProvider returns nil, nil when no key material is configured.
func newProvider(cfg types.Config, chainID *big.Int) (wallet.Provider, error) {
	switch {
	case cfg.WalletPrivateKey != "":
		return wallet.NewKeyProvider(cfg.WalletPrivateKey, chainID)
	case cfg.WalletKeystorePath != "":
		return wallet.NewKeystoreProvider(cfg.WalletKeystorePath, cfg.WalletKeystorePassphrase, chainID)
	default:
		return nil, nil
	}
}
