package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Locker     Locker
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval. Each job holds its
// own lease, so a slow job on one worker does not stall the others.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	locker     Locker
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := params.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		locker:     params.Locker,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: timeout,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job a single time. Failures are logged and counted but
// never stop the remaining jobs.
func (s *Service) RunOnce(ctx context.Context) {
	cycleCtx := s.logg.WithField(ctx, "event", "cron.cycle")
	s.logg.Info(cycleCtx, "cron cycle starting")
	for _, job := range s.registry.Jobs() {
		_ = s.runJob(ctx, job)
	}
	s.logg.Info(cycleCtx, "cron cycle complete")
}

// RunJob runs one named job under its lease and returns its error.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(ctx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   name,
		"event": "cron.job",
	})

	unlock, ok, err := s.locker.TryLock(jobCtx, name)
	if err != nil {
		s.logg.Error(jobCtx, "cron lease failed", err)
		s.metrics.NotRun(name, metrics.RunLeaseError)
		return fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		s.logg.Info(jobCtx, "job leased by another worker; skipping")
		s.metrics.NotRun(name, metrics.RunSkipped)
		return nil
	}
	defer func() {
		if relErr := unlock(context.WithoutCancel(jobCtx)); relErr != nil {
			s.logg.Error(jobCtx, "cron lease release failed", relErr)
		}
	}()

	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err = job.Run(runCtx)
	elapsed := time.Since(start)
	s.metrics.Finished(name, elapsed, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
