package viewstate

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs poll-triggered sync cycles on a cron spec with a seconds field.
// Runs that would overlap a still-running one are skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *zap.Logger
}

// NewScheduler returns nil when spec is empty, which disables polling.
// Each run is bounded by timeout.
func NewScheduler(ctx context.Context, agg *Aggregator, spec string, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		return nil, nil
	}
	cl := cronLogger{logger: logger.Sugar()}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		agg.Sync(rctx, TriggerPoll)
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, spec: spec, logger: logger}, nil
}

// Start starts the scheduler. A nil Scheduler is a no-op.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("sync poll started", zap.String("cronSpec", s.spec))
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("[cron] "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("[cron] "+msg, append(keysAndValues, "error", err)...)
}
