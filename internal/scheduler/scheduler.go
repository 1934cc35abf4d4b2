// Package scheduler wraps robfig/cron for the service's periodic
// maintenance jobs: cache expiry sweeps and store backups. It is strictly
// operational — data synchronization is never scheduled here; every sync
// is caller-initiated through the command handlers.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one schedulable unit of maintenance work. Run receives the
// scheduler's base context, which Stop cancels; the scheduler applies no
// per-job timeout, and implementations must respect its cancellation.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
}

// New creates a stopped scheduler; register jobs, then Start it.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		baseCtx: ctx,
		cancel:  cancel,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins firing registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (6-field, seconds first;
// descriptors like "@hourly"/"@daily" also work).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(s.baseCtx); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}
