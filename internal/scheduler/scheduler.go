// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

// UsagePruner trims content usage history
type UsagePruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// AuthCleaner removes expired sessions and reset tokens
type AuthCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
	CleanupExpiredPasswordResetTokens(ctx context.Context) (int64, error)
}

// VisitorCleaner forgets idle rate limiter clients
type VisitorCleaner interface {
	Cleanup(now time.Time) int
}

// Config sets job intervals and the usage retention
type Config struct {
	UsageRetention  int
	PruneInterval   time.Duration
	CleanupInterval time.Duration
	VisitorInterval time.Duration
	JobTimeout      time.Duration
}

// DefaultConfig returns hourly maintenance with a retention of 10 records
func DefaultConfig() Config {
	return Config{
		UsageRetention:  10,
		PruneInterval:   time.Hour,
		CleanupInterval: time.Hour,
		VisitorInterval: 10 * time.Minute,
		JobTimeout:      time.Minute,
	}
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (int64, error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      []job
	timeout   time.Duration
}

// New creates a scheduler. Nil collaborators leave their job out.
func New(cfg Config, usage UsagePruner, auth AuthCleaner, visitors VisitorCleaner) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		timeout:   cfg.JobTimeout,
	}
	s.scheduler.SingletonModeAll()

	if usage != nil {
		keep := cfg.UsageRetention
		s.jobs = append(s.jobs, job{"prune-usage", cfg.PruneInterval, func(ctx context.Context) (int64, error) {
			return usage.Prune(ctx, keep)
		}})
	}
	if auth != nil {
		s.jobs = append(s.jobs,
			job{"cleanup-sessions", cfg.CleanupInterval, auth.CleanupExpiredSessions},
			job{"cleanup-reset-tokens", cfg.CleanupInterval, auth.CleanupExpiredPasswordResetTokens},
		)
	}
	if visitors != nil {
		s.jobs = append(s.jobs, job{"cleanup-visitors", cfg.VisitorInterval, func(ctx context.Context) (int64, error) {
			return int64(visitors.Cleanup(time.Now())), nil
		}})
	}
	return s
}

// Start registers every job and runs the scheduler in the background
func (s *Scheduler) Start() error {
	for _, j := range s.jobs {
		if j.interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", j.name)
		}
		if _, err := s.scheduler.Every(j.interval).Do(s.execute, j); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}
	s.scheduler.StartAsync()
	log.WithField("jobs", len(s.jobs)).Info("Scheduler started")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunAll executes every job once, in order, and returns the first error
func (s *Scheduler) RunAll(ctx context.Context) error {
	for _, j := range s.jobs {
		if _, err := j.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", j.name, err)
		}
	}
	return nil
}

// Jobs returns the names of the configured jobs
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.name
	}
	return names
}

func (s *Scheduler) execute(j job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := j.run(ctx)
	entry := log.WithFields(log.Fields{"job": j.name, "duration": time.Since(start)})
	if err != nil {
		entry.WithError(err).Error("Scheduled job failed")
		return
	}
	if n > 0 {
		entry.WithField("removed", n).Info("Scheduled job finished")
	} else {
		entry.Debug("Scheduled job finished")
	}
}
