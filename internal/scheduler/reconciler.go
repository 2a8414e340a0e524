package scheduler

import (
	"context"
	"sync"
	"time"

	"talent-match/internal/collaborator"
	"talent-match/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	Interval      time.Duration
	RecencyWindow time.Duration
	BatchSize     int
	PageSize      int
}

// Reconciler periodically re-runs the matching pipeline over recently
// active entities on both sides. It exists for triggers the event path
// missed (lost events, collaborator downtime); the event consumer remains
// the primary pathway.
type Reconciler struct {
	profiles collaborator.ProfileClient
	handler  events.TriggerHandler
	opts     Options
	log      *zap.Logger
}

func NewReconciler(profiles collaborator.ProfileClient, handler events.TriggerHandler, opts Options, logger *zap.Logger) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{profiles: profiles, handler: handler, opts: opts, log: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep replays every recently active entity through the pipeline, bounded
// by BatchSize concurrent triggers so collaborator services are not
// overwhelmed.
func (r *Reconciler) Sweep(ctx context.Context) {
	start := time.Now()
	since := start.Add(-r.opts.RecencyWindow)

	subjects, err := r.profiles.ListRecentSubjectIDs(ctx, since, r.opts.PageSize)
	if err != nil {
		r.log.Warn("reconcile: list recent subjects", zap.Error(err))
	}
	opportunities, err := r.profiles.ListRecentOpportunityIDs(ctx, since, r.opts.PageSize)
	if err != nil {
		r.log.Warn("reconcile: list recent opportunities", zap.Error(err))
	}

	processed := 0
	failed := 0
	var mu sync.Mutex

	sem := make(chan struct{}, r.opts.BatchSize)
	var wg sync.WaitGroup

	dispatch := func(side string, id uuid.UUID) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			var err error
			if side == "subject" {
				_, err = r.handler.ForSubject(ctx, id)
			} else {
				_, err = r.handler.ForOpportunity(ctx, id)
			}

			mu.Lock()
			processed++
			if err != nil {
				failed++
			}
			mu.Unlock()

			if err != nil {
				r.log.Warn("reconcile trigger failed",
					zap.String("side", side),
					zap.String("entity_id", id.String()),
					zap.Error(err),
				)
			}
		}()
	}

	for _, id := range subjects {
		if ctx.Err() != nil {
			break
		}
		dispatch("subject", id)
	}
	for _, id := range opportunities {
		if ctx.Err() != nil {
			break
		}
		dispatch("opportunity", id)
	}
	wg.Wait()

	r.log.Info("reconcile sweep finished",
		zap.Int("subjects", len(subjects)),
		zap.Int("opportunities", len(opportunities)),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
}
