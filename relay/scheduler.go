package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher is anything that can run a reconciliation of all known guilds.
type Refresher interface {
	Refresh(ctx context.Context) (Report, error)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debug(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error(msg, append([]interface{}{slog.Any("err", err)}, kv...)...)
}

// StartPeriodicRefresh reconciles every interval until ctx is canceled. A pass that is
// still running when the next one is due causes that tick to be skipped. Each pass is
// bounded by timeout. It blocks until ctx ends and the running pass, if any, returns.
func StartPeriodicRefresh(ctx context.Context, r Refresher, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = interval
	}
	logger := slog.Default().With(slog.String("component", "channel_refresh"))
	cl := cronLogger{logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		rep, err := r.Refresh(pctx)
		if err != nil {
			logger.Warn("periodic refresh failed", slog.Any("err", err))
			return
		}
		logger.Debug("periodic refresh done", slog.Int("created", rep.Created), slog.Int("deleted", rep.Deleted))
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	logger.Info("periodic refresh scheduled", slog.Duration("interval", interval))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
