// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds a single reconcile run.
const runTimeout = 5 * time.Minute

// Reconciler drops ownership references to sites that no longer exist and
// returns the slugs it dropped.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]string, error)
}

// Scheduler runs the ownership reconciler on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	schedule   string
	reconciler Reconciler
	logger     *slog.Logger
}

// New creates a new scheduler. An empty schedule disables it.
func New(schedule string, reconciler Reconciler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:       cron.New(),
		schedule:   schedule,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Start registers the reconcile job and starts the cron loop. Schedules use
// the standard five-field syntax or descriptors such as "@every 1h".
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.schedule, "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs the reconciler immediately and returns the dropped slugs.
func (s *Scheduler) RunOnce(ctx context.Context) []string {
	start := time.Now()
	dropped, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error("failed to reconcile site ownership", "error", err)
		return dropped
	}

	if len(dropped) > 0 {
		s.logger.Warn("removed references to missing sites",
			"category", "site",
			"slugs", dropped,
			"duration", time.Since(start).String(),
		)
	} else {
		s.logger.Debug("site ownership consistent", "duration", time.Since(start).String())
	}
	return dropped
}
