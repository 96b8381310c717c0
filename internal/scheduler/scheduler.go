package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
)

// Refresher reloads the cached dataset from upstream.
type Refresher interface {
	Refresh(ctx context.Context) (*epidata.Dataset, error)
}

// Scheduler periodically refreshes the dataset cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. Each refresh is bounded by timeout (0 = none).
func New(refresher Refresher, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// A non-positive interval disables background refreshes.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: background refresh disabled")
		return nil
	}

	// The first load happens on demand, so the job waits for its first tick.
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", "interval", s.interval)
	return nil
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	ds, err := s.refresher.Refresh(ctx)
	if err != nil {
		// the store keeps serving the previous snapshot
		s.logger.Error("scheduler: refresh failed", "error", err)
		return
	}
	s.logger.Info("scheduler: dataset refreshed",
		"dataset_id", ds.ID,
		"observations", len(ds.Observations),
		"duration", time.Since(start),
	)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
