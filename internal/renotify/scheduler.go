package renotify

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the job on a cron schedule such as "@hourly" or "0 */6 * * *".
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func NewScheduler(job *Job, schedule string, log *zap.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := job.Run(context.Background()); err != nil {
			log.Error("Renotification pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid renotify schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Renotification scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for a running pass to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Renotification pass still running at shutdown")
	}
}
