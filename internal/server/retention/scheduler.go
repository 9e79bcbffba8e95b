// Package retention runs periodic housekeeping jobs such as pruning the
// security audit log.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/metrics"
	"github.com/robfig/cron/v3"
)

// AuditPurger deletes audit entries older than retention.
type AuditPurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler wraps a cron runner. Jobs never overlap with themselves.
type Scheduler struct {
	cron    *cron.Cron
	logger  logging.Logger
	timeout time.Duration
}

func New(logger logging.Logger) *Scheduler {
	logger = logger.With("module", "retention")
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// AddAuditRetention schedules purger on spec (standard cron syntax or a
// descriptor such as @daily).
func (s *Scheduler) AddAuditRetention(spec string, purger AuditPurger, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("audit retention must be positive, got %s", retention)
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.run("audit_retention", func(ctx context.Context) error {
			n, err := purger.Purge(ctx, retention)
			if err == nil {
				s.logger.Info(ctx, "purged audit entries", "count", n, "retention", retention.String())
			}
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("schedule audit retention %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	metrics.RecordJob(name, time.Since(start), err == nil)
	if err != nil {
		s.logger.Error(ctx, "scheduled job failed", "job", name, "error", err)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct{ l logging.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(keysAndValues, "error", err)...)
}
