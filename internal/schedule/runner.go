// Package schedule runs periodic jobs such as the background reload.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	appLog "maintdash/internal/log"
)

// Job is a unit of scheduled work. Returned errors are logged.
type Job func(ctx context.Context) error

type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
}

// New builds a runner using standard five-field cron specs. Jobs receive
// baseCtx, so cancelling it stops in-flight work.
func New(baseCtx context.Context, loc *time.Location) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		baseCtx: baseCtx,
	}
}

// Add registers job under spec. A run that is still going when the next
// tick arrives makes that tick a no-op.
func (r *Runner) Add(spec, name string, job Job) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := job(r.baseCtx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "took", time.Since(started).String())
	})
}

func (r *Runner) Start() {
	appLog.Info("scheduler started", "jobs", len(r.cron.Entries()))
	r.cron.Start()
}

// Stop waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	appLog.Info("scheduler stopped")
}
