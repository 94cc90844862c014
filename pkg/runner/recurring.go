package runner

import (
	"context"
	"errors"
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/schedule"
)

// RunEvery executes runs on the given schedule until the context is
// cancelled. A run already in progress when the schedule fires is left
// alone and the tick is skipped.
func (r *Runner) RunEvery(ctx context.Context, sched schedule.Schedule, opts Options) error {
	for {
		next := sched.Next(time.Now())
		r.logger.Info("next harvest sweep", "at", next)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		err := r.Run(ctx, opts)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrAlreadyRunning):
			r.logger.Warn("previous sweep still running, skipping tick")
		case errors.Is(err, context.Canceled):
			return err
		default:
			r.logger.Error("harvest sweep failed", "error", err)
		}
	}
}
