// Package retention removes completed debates past their configured age
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/openagora/agora/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger deletes completed debates older than the cutoff and reports
// how many were removed.
type Purger interface {
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job periodically purges old completed debates.
type Job struct {
	purger   Purger
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// Config holds retention job configuration.
type Config struct {
	Purger   Purger
	Schedule string // cron expression
	MaxAge   int    // days
	Logger   zerolog.Logger
}

// New creates a retention job. It does not start until Start is called.
func New(cfg Config) (*Job, error) {
	if cfg.Purger == nil {
		return nil, fmt.Errorf("purger is required")
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive")
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule: %w", err)
	}

	return &Job{
		purger:   cfg.Purger,
		maxAge:   time.Duration(cfg.MaxAge) * 24 * time.Hour,
		schedule: cfg.Schedule,
		cron:     cron.New(),
		logger:   cfg.Logger.With().Str("component", "retention").Logger(),
	}, nil
}

// Start schedules the job.
func (j *Job) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.runOnce); err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}
	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Dur("max_age", j.maxAge).Msg("Retention job scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running purge to finish.
func (j *Job) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info().Msg("Retention job stopped")
}

func (j *Job) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.maxAge)
	purged, err := j.purger.PurgeCompletedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Msg("Retention purge failed")
		return
	}
	if purged > 0 {
		observability.RecordPurgedDebates(purged)
		j.logger.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Purged completed debates")
	}
}
