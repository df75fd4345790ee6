// Package cleanup removes stale verification records and finishes sign-up
// compensations that could not delete their identity inline.
package cleanup

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"voty/internal/metrics"
)

// Metric kinds.
const (
	KindVerifications = "verifications"
	KindIdentities    = "identities"
)

type VerificationStore interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type IdentityStore interface {
	ListPendingCleanup(ctx context.Context, limit int) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type CleanupJob struct {
	verifications VerificationStore
	identities    IdentityStore
	metrics       metrics.MetricsCollector
	logger        *zap.Logger
	now           func() time.Time

	Interval  time.Duration
	MaxAge    time.Duration // how long an expired code row is kept
	BatchSize int
}

func NewCleanupJob(v VerificationStore, i IdentityStore, m metrics.MetricsCollector, logger *zap.Logger) *CleanupJob {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupJob{
		verifications: v,
		identities:    i,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
		Interval:      15 * time.Minute,
		MaxAge:        24 * time.Hour,
		BatchSize:     100,
	}
}

// Run does one pass. It is idempotent; failures of single identities are
// logged and left for the next pass.
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	removed, err := j.verifications.DeleteExpired(ctx, start.Add(-j.MaxAge))
	if err != nil {
		j.logger.Error("verification cleanup failed", zap.Error(err))
		return err
	}
	j.metrics.RecordCleanup(KindVerifications, removed)

	ids, err := j.identities.ListPendingCleanup(ctx, j.BatchSize)
	if err != nil {
		j.logger.Error("listing identities for cleanup failed", zap.Error(err))
		return err
	}
	var deleted int64
	for _, id := range ids {
		if err := j.identities.Delete(ctx, id); err != nil {
			j.logger.Warn("identity cleanup failed", zap.String("identity_id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	j.metrics.RecordCleanup(KindIdentities, deleted)

	j.logger.Info("cleanup finished",
		zap.Int64("verifications_deleted", removed),
		zap.Int64("identities_deleted", deleted),
		zap.Int("identities_pending", len(ids)-int(deleted)),
		zap.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

// Start runs the job immediately and then every Interval until ctx is done.
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		if err := j.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			j.logger.Warn("cleanup pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
