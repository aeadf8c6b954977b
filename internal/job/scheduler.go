package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs registered jobs on cron schedules. Overlapping runs of the
// same job are skipped rather than queued.
type Scheduler struct {
	engine *cron.Cron
	logger *slog.Logger
	jobs   int
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	return &Scheduler{
		engine: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger: logger,
	}
}

// Register adds j under schedule ("@every 1h", "0 3 * * *", ...). An empty schedule
// leaves the job disabled.
func (s *Scheduler) Register(name, schedule string, j cron.Job) error {
	if schedule == "" {
		s.logger.Info("job disabled", slog.String("job", name))
		return nil
	}
	if _, err := s.engine.AddJob(schedule, j); err != nil {
		return fmt.Errorf("job: scheduling %s with %q: %w", name, schedule, err)
	}
	s.jobs++
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("schedule", schedule))
	return nil
}

// Len reports how many jobs are scheduled.
func (s *Scheduler) Len() int { return s.jobs }

// Run starts the engine and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.engine.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()

	<-s.engine.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}
