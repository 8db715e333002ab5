// Package schedule runs the ingestion pipeline on a recurring schedule.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultCron runs daily at 02:00 UTC.
const DefaultCron = "0 2 * * *"

// Job is the work the scheduler triggers, typically a pipeline RunAll bound
// to the configured sources.
type Job func(ctx context.Context)

// Options configure the scheduler. Cron takes precedence; Interval is the
// fallback for deployments that want a plain fixed period.
type Options struct {
	Cron     string
	Interval time.Duration
}

// Scheduler triggers a Job on a cron schedule or fixed interval.
type Scheduler struct {
	opts Options
	job  Job
}

// New creates a Scheduler for the job.
func New(opts Options, job Job) *Scheduler {
	return &Scheduler{opts: opts, job: job}
}

// Run blocks, firing the job per schedule, until ctx is cancelled. Overlap is
// prevented by the cron runner itself; interval mode fires strictly serially.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.Interval > 0 {
		return s.runInterval(ctx)
	}
	return s.runCron(ctx)
}

func (s *Scheduler) runCron(ctx context.Context) error {
	spec := s.opts.Cron
	if spec == "" {
		spec = DefaultCron
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() { s.job(ctx) }); err != nil {
		return eris.Wrapf(err, "schedule: invalid cron expression %q", spec)
	}

	zap.L().Info("schedule: started", zap.String("cron", spec))
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	zap.L().Info("schedule: stopped")
	return nil
}

func (s *Scheduler) runInterval(ctx context.Context) error {
	zap.L().Info("schedule: started", zap.Duration("interval", s.opts.Interval))
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("schedule: stopped")
			return nil
		case <-ticker.C:
			s.job(ctx)
		}
	}
}
