package git

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/gardener/internal/logfields"
)

// SyncFunc is the job the scheduler runs.
type SyncFunc func(ctx context.Context) (Result, error)

// Scheduler runs a sync every interval until stopped.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler registers run on a fixed interval. Runs never overlap; a run that is still
// going when the next tick fires makes the scheduler skip that tick.
func NewScheduler(interval time.Duration, run SyncFunc) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := &Scheduler{scheduler: s, ctx: ctx, cancel: cancel}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sched.execute, run),
		gocron.WithName("content-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodic sync job: %w", err)
	}
	return sched, nil
}

// Start begins the schedule.
func (s *Scheduler) Start() {
	slog.Info("Starting sync scheduler")
	s.scheduler.Start()
}

// Stop cancels a running sync and waits for the scheduler to exit.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping sync scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

func (s *Scheduler) execute(run SyncFunc) {
	start := time.Now()
	res, err := run(s.ctx)
	if err != nil {
		slog.Error("Scheduled sync failed", logfields.Error(err), logfields.Duration(time.Since(start)))
		return
	}
	slog.Debug("Scheduled sync finished",
		slog.String("after", short(res.After)),
		slog.Int("committed", res.Committed),
		logfields.Duration(time.Since(start)))
}
