package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/metrics"
	outboxdomain "github.com/easybilling/easybilling/internal/outbox/domain"
	recurringdomain "github.com/easybilling/easybilling/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	RecurringSvc recurringdomain.Service
	OutboxProc   outboxdomain.Processor
	Config       Config `optional:"true"`
}

// Scheduler drives the periodic background work: generating invoices for
// due recurring schedules and delivering pending outbox events.
type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	recurringSvc recurringdomain.Service
	outboxProc   outboxdomain.Processor
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RecurringSvc == nil || p.OutboxProc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		recurringSvc: p.RecurringSvc,
		outboxProc:   p.OutboxProc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	schedMetrics := metrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}
	schedMetrics.IncJobError(name)

	// A deadline hit is a soft timeout: log and let the next tick resume.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"recurring_invoices", s.recurringSvc.ProcessDue},
		{"outbox_dispatch", s.outboxProc.ProcessDue},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty allowlist enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
