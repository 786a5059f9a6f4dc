package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	"github.com/smallbiznis/classbook/internal/clock"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/classbook/internal/observability/metrics"
	"github.com/smallbiznis/classbook/internal/promotion"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Rearmer restarts waitlist promotion for a session.
type Rearmer interface {
	Rearm(ctx context.Context, ref bookingdomain.SessionRef, reason string) bool
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     bookingdomain.Repository
	ClassSvc classdomain.Service
	Promoter Rearmer
	Notifier notificationdomain.Notifier `optional:"true"`
	Hub      *liveevents.Hub             `optional:"true"`
	Locker   SweepLocker                 `optional:"true"`
	Config   Config                      `optional:"true"`
}

type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	repo     bookingdomain.Repository
	classSvc classdomain.Service
	promoter Rearmer
	notifier notificationdomain.Notifier
	hub      *liveevents.Hub
	locker   SweepLocker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Repo == nil || p.ClassSvc == nil || p.Promoter == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		classSvc: p.ClassSvc,
		promoter: p.Promoter,
		notifier: p.Notifier,
		hub:      p.Hub,
		locker:   p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withSweepLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
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
		{JobExpireOffers, s.ExpireOffersJob},
		{JobRearmPromotions, s.RearmPromotionsJob},
		{JobClosePastWaitlists, s.ClosePastWaitlistsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty means every job runs (monolith mode).
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

// ExpireOffersJob lapses promotion offers past their deadline and hands the
// seat back to the promoter.
func (s *Scheduler) ExpireOffersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireOffers, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	var jobErr error

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		now := s.clock.Now().UTC()
		expired, err := s.repo.ExpireOffers(ctx, s.db, now, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.offer.expire.failed", JobExpireOffers, 0, err)
			return errors.Join(jobErr, err)
		}
		run.AddProcessed(len(expired))
		obsmetrics.Scheduler().AddBatchProcessed(JobExpireOffers, "bookings", len(expired))

		rearmed := map[string]bool{}
		for _, booking := range expired {
			s.logOfferExpired(ctx, booking)
			s.announceExpiry(ctx, booking)
			if rearmed[booking.SessionKey] {
				continue
			}
			rearmed[booking.SessionKey] = true
			ref := bookingdomain.SessionRef{
				ClubID:      booking.ClubID,
				ClassID:     booking.ClassID,
				SessionKey:  booking.SessionKey,
				SessionDate: booking.SessionDate,
			}
			armed := s.promoter.Rearm(s.withLogContext(ctx, booking.ClubID), ref, promotion.ReasonOfferExpired)
			s.logPromotionRearmed(ctx, JobExpireOffers, ref, armed)
		}

		if len(expired) < s.cfg.BatchSize {
			break
		}
	}
	return jobErr
}

// RearmPromotionsJob restarts promotion for upcoming sessions that still
// have people waiting. It recovers tasks lost to a restart.
func (s *Scheduler) RearmPromotionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobRearmPromotions, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	today := recurrence.Civil(s.clock.Now().UTC())
	refs, err := s.repo.ListPromotable(ctx, s.db, today, s.cfg.BatchSize)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.promotion.list.failed", JobRearmPromotions, 0, err)
		return err
	}
	armed := 0
	for _, ref := range refs {
		ok := s.promoter.Rearm(s.withLogContext(ctx, ref.ClubID), ref, promotion.ReasonRecovery)
		s.logPromotionRearmed(ctx, JobRearmPromotions, ref, ok)
		if ok {
			armed++
		}
	}
	run.AddProcessed(armed)
	obsmetrics.Scheduler().AddBatchProcessed(JobRearmPromotions, "sessions", armed)
	return nil
}

// ClosePastWaitlistsJob cancels waitlist entries of sessions that are over.
func (s *Scheduler) ClosePastWaitlistsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobClosePastWaitlists, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now().UTC()
	// One day of slack keeps sessions in timezones behind UTC open.
	before := recurrence.Civil(now).AddDate(0, 0, -1)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		closed, err := s.repo.CloseWaitlists(ctx, s.db, before, now, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.waitlist.close.failed", JobClosePastWaitlists, 0, err)
			return err
		}
		run.AddProcessed(int(closed))
		obsmetrics.Scheduler().AddBatchProcessed(JobClosePastWaitlists, "bookings", int(closed))
		if closed < int64(s.cfg.BatchSize) {
			return nil
		}
	}
}

func (s *Scheduler) announceExpiry(ctx context.Context, booking *bookingdomain.Booking) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, notificationdomain.Message{
			ClubID:     booking.ClubID,
			MemberID:   booking.MemberID,
			Kind:       notificationdomain.KindOfferExpired,
			Subject:    "Your seat offer expired",
			Body:       "The seat we held for you was not booked in time. You are no longer on the waitlist for this session.",
			SessionKey: booking.SessionKey,
			Data: map[string]any{
				"booking_id": booking.ID.String(),
			},
		})
	}
	if s.hub == nil {
		return
	}

	capacity := 0
	if class, err := s.classSvc.Lookup(ctx, booking.ClubID, booking.ClassID); err == nil {
		capacity = class.Capacity
	}
	now := s.clock.Now().UTC()
	counts, err := s.repo.CountSession(ctx, s.db, booking.SessionKey, now)
	if err != nil {
		s.logger(ctx).Warn("scheduler.live_event.count_failed", zap.String("session_key", booking.SessionKey), zap.Error(err))
		return
	}
	s.hub.Publish(booking.SessionKey, liveevents.Event{
		Type:        liveevents.TypeOfferExpired,
		SessionKey:  booking.SessionKey,
		BookingID:   booking.ID.String(),
		Status:      string(booking.Status),
		AttendCount: counts.Attend,
		WaitCount:   counts.Wait,
		Capacity:    capacity,
		OccurredAt:  now.Format(time.RFC3339),
	})
}
