package types

import (
	"context"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/pkg/redis"
	"github.com/canopy-network/questview/pkg/viewstate"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

type App struct {
	Config Config

	// Client is the node connection shared by reads and writes.
	Client *ethclient.Client
	// ReadPool bounds concurrent ledger reads across catalog and status fan-outs.
	ReadPool pond.Pool

	Aggregator *viewstate.Aggregator
	Dispatcher *viewstate.Dispatcher
	// Scheduler is nil when polling is off.
	Scheduler *viewstate.Scheduler

	// RedisClient and Publisher are nil when Redis is disabled or unreachable.
	RedisClient *redis.Client
	Publisher   *redis.Publisher

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start serves until ctx is done, then tears down. Broadcast transactions are not cancelled;
// only the wait for their finalization is abandoned.
func (a *App) Start(ctx context.Context) {
	a.Scheduler.Start()
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Scheduler.Stop()
	_ = a.Server.Shutdown(shutdownCtx)
	a.ReadPool.StopAndWait()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	a.Client.Close()

	_ = a.Logger.Sync()
	a.Logger.Info("さようなら!")
}
