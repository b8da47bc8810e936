package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// JobTimeout caps a single job run. It should stay below the lock TTL so a slow run
	// cannot outlive its lease. Zero means no cap.
	JobTimeout time.Duration
}

// Service walks the registry on a fixed interval. Jobs are leased one at a time, so any
// number of workers can share the schedule without double runs.
type Service struct {
	logg       *logger.Logger
	jobs       *Registry
	lock       Lock
	metrics    *metrics.JobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Registry == nil:
		return nil, errors.New("registry required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:       params.Logger,
		jobs:       params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run sweeps once straight away, then once per interval, until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	for _, job := range s.jobs.Jobs() {
		if ctx.Err() != nil {
			return
		}
		s.runLocked(ctx, job)
	}
}

func (s *Service) runLocked(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	acquired, err := s.lock.Acquire(ctx, name)
	if err != nil {
		s.logg.Error(jobCtx, "job lock unavailable", err)
		s.metrics.Result(name, metrics.JobError)
		return
	}
	if !acquired {
		s.logg.Debug(jobCtx, "job held by another worker")
		s.metrics.Result(name, metrics.JobSkipped)
		return
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			s.logg.Error(jobCtx, "job lock release failed", err)
		}
	}()

	start := time.Now()
	err = s.invoke(jobCtx, job)
	took := time.Since(start)
	s.metrics.Ran(name, took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}

// invoke runs job under the configured timeout and turns a panic into an error so one bad
// job cannot take the worker down.
func (s *Service) invoke(ctx context.Context, job Job) (err error) {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v\n%s", job.Name(), r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}
