package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/miwatch/miwatch/pkg/config"
	"github.com/miwatch/miwatch/pkg/db"
)

// retentionInterval is how often the cleanup pass runs.
const retentionInterval = 24 * time.Hour

// RetentionJob periodically prunes history rows older than the
// configured retention window. Devices and alerts are never pruned.
type RetentionJob struct {
	cfg    *config.Config
	store  *db.DB
	logger zerolog.Logger
}

// NewRetentionJob creates a RetentionJob.
func NewRetentionJob(cfg *config.Config, store *db.DB, logger zerolog.Logger) *RetentionJob {
	return &RetentionJob{cfg: cfg, store: store, logger: logger}
}

// Run executes one cleanup pass immediately, then one per
// retentionInterval until the context is cancelled. It returns
// immediately when auto cleanup is disabled.
func (j *RetentionJob) Run(ctx context.Context) {
	if !j.cfg.AutoCleanup() {
		return
	}

	j.runOnce(ctx)

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RetentionJob) runOnce(ctx context.Context) {
	days := j.cfg.RetentionDays()
	statusDeleted, propsDeleted, err := j.store.History().Cleanup(ctx, days)
	if err != nil {
		j.logger.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	j.logger.Info().
		Int("retention_days", days).
		Int64("status_deleted", statusDeleted).
		Int64("properties_deleted", propsDeleted).
		Msg("retention cleanup completed")
}
