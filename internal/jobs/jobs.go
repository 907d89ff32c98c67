// Package jobs runs periodic maintenance: counter reconciliation and the
// purge of expired email tokens.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
	"github.com/blogsphere/blogapi/pkg/telemetry"
)

// jobTimeout bounds a single run of any job
const jobTimeout = 3 * time.Minute

// RecountResult counts the rows each recount corrected
type RecountResult struct {
	Categories int64
	Tags       int64
	Posts      int64
}

// Total is the number of corrected rows
func (r RecountResult) Total() int64 {
	return r.Categories + r.Tags + r.Posts
}

// Maintenance holds the job bodies. They are safe to run at any time and
// repeated runs converge on the same state.
type Maintenance struct {
	store  db.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewMaintenance creates the maintenance jobs over store
func NewMaintenance(store db.Store) *Maintenance {
	return &Maintenance{store: store, logger: logging.WithComponent("jobs"), now: time.Now}
}

// Recount recomputes category and tag post counts and post comment counts
// from the rows that reference them
func (m *Maintenance) Recount(ctx context.Context) (RecountResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "jobs.recount")
	defer span.End()

	var res RecountResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := m.store.Categories().Recount(ctx)
		if err != nil {
			return fmt.Errorf("recount categories: %w", err)
		}
		res.Categories = n
		return nil
	})
	g.Go(func() error {
		n, err := m.store.Tags().Recount(ctx)
		if err != nil {
			return fmt.Errorf("recount tags: %w", err)
		}
		res.Tags = n
		return nil
	})
	g.Go(func() error {
		n, err := m.store.Comments().RecountPosts(ctx)
		if err != nil {
			return fmt.Errorf("recount comments: %w", err)
		}
		res.Posts = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	if res.Total() > 0 {
		m.logger.Warn("Counters drifted and were corrected",
			zap.Int64("categories", res.Categories),
			zap.Int64("tags", res.Tags),
			zap.Int64("posts", res.Posts))
	}
	return res, nil
}

// PurgeTokens clears expired verification and reset tokens
func (m *Maintenance) PurgeTokens(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "jobs.purge_tokens")
	defer span.End()

	n, err := m.store.Users().PurgeExpiredTokens(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return n, nil
}

// Scheduler runs Maintenance on cron schedules
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Maintenance
	logger *zap.Logger
}

// NewScheduler registers the maintenance jobs. An empty spec disables that
// job; an invalid one is an error.
func NewScheduler(cfg *config.JobsConfig, m *Maintenance) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:   m,
		logger: logging.WithComponent("scheduler"),
	}
	if err := s.add("recount", cfg.RecountSpec, func(ctx context.Context) (int64, error) {
		res, err := m.Recount(ctx)
		return res.Total(), err
	}); err != nil {
		return nil, err
	}
	if err := s.add("purge_tokens", cfg.TokenPurgeSpec, m.PurgeTokens); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, run func(ctx context.Context) (int64, error)) error {
	if spec == "" {
		s.logger.Info("Job disabled", zap.String("job", name))
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		ctx, span := telemetry.StartSpan(ctx, "jobs.run", trace.WithAttributes(attribute.String("job", name)))
		defer span.End()
		logger := logging.WithTraceID(span.SpanContext().TraceID().String()).With(zap.String("component", "scheduler"))

		start := time.Now()
		n, err := run(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
			logger.Error("Job failed", zap.String("job", name), zap.Error(err))
			return
		}
		logger.Info("Job finished",
			zap.String("job", name),
			zap.Int64("rows", n),
			zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec), zap.Int("entry_id", int(id)))
	return nil
}

// Entries is the number of scheduled jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}
