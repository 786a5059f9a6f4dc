package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/classbook/internal/observability/metrics"
	"go.uber.org/zap"
)

const sweepLockPrefix = "classbook:scheduler:lock:"

// SweepLocker elects a single replica for a job run.
type SweepLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// withSweepLock runs fn while holding the job's lock. Without a locker every
// replica runs the job; the booking repository updates are conditional so
// overlapping runs stay correct.
func (s *Scheduler) withSweepLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := sweepLockPrefix + job
	schedMetrics := obsmetrics.Scheduler()
	lockStart := time.Now()
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceSweeper, time.Since(lockStart))
	if err != nil {
		return err
	}
	if !ok {
		schedMetrics.IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("scheduler.job.deferred",
			zap.String("job", job),
			zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLockHeld),
		)
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}
