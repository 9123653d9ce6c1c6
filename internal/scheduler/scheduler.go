package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"market-data-service/internal/coordinator"
	"market-data-service/internal/logger"
)

// Scheduler drives the coordinator's periodic maintenance cycle. The cycle is
// cooperatively cancellable: Stop prevents further runs and waits for an
// in-flight cycle to finish.
type Scheduler struct {
	cron     *cron.Cron
	coord    *coordinator.Coordinator
	interval time.Duration
}

// New creates a scheduler running the coordinator cycle at the given
// interval (default 300s).
func New(coord *coordinator.Coordinator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &Scheduler{
		cron:     cron.New(),
		coord:    coord,
		interval: interval,
	}
}

// Start registers and launches the maintenance job.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		ctx := logger.WithRequestID(context.Background())
		start := time.Now()

		s.coord.RunCycle(ctx)

		logger.LogServiceEvent(ctx, "optimizer_cycle", "Cache maintenance cycle completed", map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance cycle: %w", err)
	}

	s.cron.Start()
	logger.GetLogger().WithField("interval", s.interval.String()).Info("Cache maintenance scheduler started")
	return nil
}

// Stop cancels the schedule and blocks until any running cycle returns.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.GetLogger().Info("Cache maintenance scheduler stopped")
}
