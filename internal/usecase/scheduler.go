package usecase

import (
	"context"
	"log/slog"
	"time"

	"ObservationsIndexer/internal/crawler"
	"ObservationsIndexer/internal/identity"
	"ObservationsIndexer/internal/ports"
)

// Scheduler wires the ticker driver with the pipeline: every trigger
// ingests the previous day of each watched tree.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	trees    []identity.Tree
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, trees []identity.Tree, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, trees: trees, logger: logger}
}

// Start registers the nightly ingest with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.RunFor(ctx, trigger)
	})
}

// RunFor ingests the day before trigger for every tree and publishes the
// reports. Errors are logged; one failing tree does not stop the others.
func (s *Scheduler) RunFor(ctx context.Context, trigger time.Time) []Report {
	day := trigger.AddDate(0, 0, -1)
	sel := crawler.SelectDate(day)

	var all []Report
	for _, tree := range s.trees {
		reports, err := s.pipeline.ProcessTree(ctx, tree, sel)
		all = append(all, reports...)
		if err != nil && s.logger != nil {
			s.logger.Error("scheduled ingest failed", "tree", tree.Name, "day", day.Format("060102"), "error", err)
		}
	}

	if err := s.pipeline.Notify(ctx, all...); err != nil && s.logger != nil {
		s.logger.Warn("notification failed", "error", err)
	}
	return all
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
