package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler drives the polling cadence from a standard cron expression.
// Ticks never overlap: the next fire time is computed only after the job
// returns.
type Scheduler struct {
	schedule cron.Schedule
	job      func(ctx context.Context)
}

// New parses a standard five-field cron expression and wraps job in a
// Scheduler.
func New(expr string, job func(ctx context.Context)) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, err
	}

	return &Scheduler{schedule: schedule, job: job}, nil
}

// Next returns the first fire time after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Start runs the job once immediately, then forever on schedule until ctx is
// cancelled. The inter-tick wait is the only idle state; cancellation during
// the wait stops the loop.
func (s *Scheduler) Start(ctx context.Context) {
	logrus.Info("Performing initial check")
	s.job(ctx)

	for {
		next := s.schedule.Next(time.Now())
		logrus.WithField("next_run", next.Format(time.RFC3339)).Info("Next check scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logrus.Info("Scheduler stopped")
			return
		case <-timer.C:
		}

		s.job(ctx)
	}
}
