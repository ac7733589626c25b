package usecase

import (
	"context"
	"log/slog"
	"time"

	"maildigest/internal/ports"
)

// Scheduler wires the clock driver to the daily and weekly pipelines.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers both pipeline jobs with the provided driver. A failed
// run is logged; the next scheduled run is unaffected.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	daily := func(trigger time.Time) {
		report, err := s.pipeline.DailyRun(ctx, trigger)
		if err != nil {
			s.logger.Error("daily run failed", "error", err)
			return
		}
		s.logger.Info("daily run finished",
			"fetched", report.Fetched, "candidates", report.Candidates, "stored", report.Stored)
	}

	weekly := func(trigger time.Time) {
		report, err := s.pipeline.WeeklyRun(ctx, trigger)
		if err != nil {
			s.logger.Error("weekly run failed", "error", err)
			return
		}
		s.logger.Info("weekly run finished",
			"records", report.Records, "genres", report.Genres, "digest", report.DigestPath)
	}

	return s.driver.Start(ctx, daily, weekly)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
