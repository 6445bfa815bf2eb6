package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

// Runner schedules the background jobs on cron expressions. Each run gets its
// own bounded context; a job failing or overrunning never takes the process
// down, the next scheduled run simply tries again.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cron: cron.New(), logger: logger}
}

// Add registers a job under a standard 5-field cron spec.
func (r *Runner) Add(name, spec string, job func(ctx context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := job(ctx); err != nil {
			r.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		r.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	r.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
