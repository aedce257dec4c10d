package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PurgeFunc deletes expired rows and reports how many went.
type PurgeFunc func(ctx context.Context) (int64, error)

// sweepTimeout bounds one purge run.
const sweepTimeout = time.Minute

// ValidateCron reports whether expr is a schedule RunTokenSweeper accepts.
func ValidateCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("scheduler: invalid token sweep cron %q: %w", expr, err)
	}
	return nil
}

// RunTokenSweeper purges expired password reset tokens once at start and
// then on every tick of cronExpr (robfig/cron syntax, e.g. "@every 1h"). It
// blocks until ctx is cancelled and a running purge has returned. onPurged,
// if set, receives each non-error count.
func RunTokenSweeper(ctx context.Context, cronExpr string, purge PurgeFunc, onPurged func(int64)) error {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("scheduler: invalid token sweep cron %q: %w", cronExpr, err)
	}

	sweep := func() {
		runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()

		n, err := purge(runCtx)
		if err != nil {
			slog.ErrorContext(runCtx, "scheduler: purge expired reset tokens", "error", err)
			return
		}
		if onPurged != nil {
			onPurged(n)
		}
		if n > 0 {
			slog.InfoContext(runCtx, "scheduler: purged expired reset tokens", "count", n)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(sweep))

	sweep()
	c.Start()
	slog.Info("scheduler: token sweeper started", "cron", cronExpr)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler: token sweeper stopped")
	return nil
}
