package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/config"
)

// Scheduler runs the pipeline on a cron expression. Ticks that arrive while
// a run is still in flight are skipped, not queued.
type Scheduler struct {
	pipeline   *Pipeline
	cronExpr   string
	location   *time.Location
	runTimeout time.Duration
	logger     *slog.Logger

	running sync.Mutex
}

func NewScheduler(pipeline *Pipeline, cfg config.ScheduleConfig, logger *slog.Logger) (*Scheduler, error) {
	location := time.Local
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		location = loc
	}
	return &Scheduler{
		pipeline:   pipeline,
		cronExpr:   cfg.Cron,
		location:   location,
		runTimeout: 10 * time.Minute,
		logger:     logger,
	}, nil
}

// Start blocks until the context ends, firing the pipeline on schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.location))
	if _, err := c.AddFunc(s.cronExpr, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cronExpr, err)
	}

	s.logger.Info("scheduler started", "cron", s.cronExpr, "timezone", s.location.String())
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	// Let an in-flight tick wind down before returning.
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("previous run still in flight, skipping tick")
		return
	}
	defer s.running.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	summary, err := s.pipeline.Run(runCtx)
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
		return
	}
	s.logger.Info("scheduled run finished",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)
}
