// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work. Schedule is a standard five-field
// cron expression or a descriptor such as "@hourly" or "@every 10m".
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs Jobs on their cron schedules in UTC. Overlapping runs of
// the same job are skipped and panics are recovered.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{log: logger.Sugar()}
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: logger,
	}
}

// Add registers j. It fails on an unparsable schedule.
func (s *Scheduler) Add(j Job) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	_, err := s.c.AddFunc(j.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := j.Run(ctx); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", j.Name), zap.Error(err))
			return
		}
		s.log.Debug("scheduled job finished",
			zap.String("job", j.Name),
			zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Schedule, err)
	}
	s.log.Info("scheduled job registered", zap.String("job", j.Name), zap.String("schedule", j.Schedule))
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.c.Entries()) }

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.c.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidSchedule reports whether spec parses as a schedule Add accepts.
func ValidSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
