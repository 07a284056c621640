package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
)

const (
	defaultTick       = time.Minute
	defaultJobTimeout = 10 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LockFactory returns the lease guarding one job. The lease TTL is the job's
// period, so holding it means "ran recently somewhere".
type LockFactory func(name string, ttl time.Duration) (Lock, error)

type ServiceParams struct {
	Logger     *logger.Logger
	Schedule   *Schedule
	Locks      LockFactory
	Metrics    *metrics.CronMetrics
	Tick       time.Duration
	JobTimeout time.Duration
}

type scheduled struct {
	entry
	lock Lock
}

// Service wakes every tick and runs the jobs whose lease it can take. A
// successful run keeps the lease until it expires; a failed run gives it back
// so the next tick on any replica retries.
type Service struct {
	logg       *logger.Logger
	jobs       []scheduled
	metrics    *metrics.CronMetrics
	tick       time.Duration
	jobTimeout time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Locks == nil:
		return nil, errors.New("lock factory required")
	case p.Schedule == nil || p.Schedule.Len() == 0:
		return nil, errors.New("nothing scheduled")
	}
	s := &Service{
		logg:       p.Logger,
		metrics:    p.Metrics,
		tick:       p.Tick,
		jobTimeout: p.JobTimeout,
	}
	if s.tick <= 0 {
		s.tick = defaultTick
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	for _, e := range p.Schedule.entries {
		// The lease must outlive the run or a second replica could start it.
		lock, err := p.Locks(e.job.Name(), max(e.every, s.jobTimeout))
		if err != nil {
			return nil, fmt.Errorf("lock for %s: %w", e.job.Name(), err)
		}
		s.jobs = append(s.jobs, scheduled{entry: e, lock: lock})
	}
	return s, nil
}

// Run checks the schedule immediately and then every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		if err := s.runDue(ctx); err != nil {
			s.logg.Error(ctx, "cron.tick_failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runDue runs every job whose lease is free and combines their failures.
func (s *Service) runDue(ctx context.Context) error {
	var errs error
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		won, err := j.lock.Acquire(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", j.job.Name(), err))
			continue
		}
		if !won {
			continue
		}
		if err := s.runJob(ctx, j.job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", j.job.Name(), err))
			if relErr := j.lock.Release(ctx); relErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "cron.release_failed")
			}
		}
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", job.Name()), s.jobTimeout)
	defer cancel()

	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)
	s.metrics.Observe(job.Name(), elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
		return err
	}
	s.logg.Info(jobCtx, "cron.job_done")
	return nil
}
