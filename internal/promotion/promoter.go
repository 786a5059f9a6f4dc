package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	"github.com/smallbiznis/classbook/internal/clock"
	clubdomain "github.com/smallbiznis/classbook/internal/club/domain"
	"github.com/smallbiznis/classbook/internal/config"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	obscontext "github.com/smallbiznis/classbook/internal/observability/context"
	obsmetrics "github.com/smallbiznis/classbook/internal/observability/metrics"
	"github.com/smallbiznis/classbook/internal/scheduler/task"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ReasonSeatFreed    = "seat_freed"
	ReasonOfferExpired = "offer_expired"
	ReasonRecovery     = "recovery"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	Clock      clock.Clock
	Runner     *task.Runner
	ClassSvc   classdomain.Service
	ClubSvc    clubdomain.Service
	Notifier   notificationdomain.Notifier `optional:"true"`
	Hub        *liveevents.Hub             `optional:"true"`
	Metrics    *obsmetrics.Metrics         `optional:"true"`
	BookingCfg *config.BookingConfigHolder `optional:"true"`
}

// Promoter offers seats that open up in a full session to its waitlist, one
// member at a time in queue order.
type Promoter struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	clock      clock.Clock
	runner     *task.Runner
	classSvc   classdomain.Service
	clubSvc    clubdomain.Service
	notifier   notificationdomain.Notifier
	hub        *liveevents.Hub
	metrics    *obsmetrics.Metrics
	bookingCfg *config.BookingConfigHolder
}

func New(p Params) *Promoter {
	p.Runner.OnChange(obsmetrics.Scheduler().SetPromoterActive)
	return &Promoter{
		db:         p.DB,
		log:        p.Log.Named("promotion"),
		repo:       p.Repo,
		clock:      p.Clock,
		runner:     p.Runner,
		classSvc:   p.ClassSvc,
		clubSvc:    p.ClubSvc,
		notifier:   p.Notifier,
		hub:        p.Hub,
		metrics:    p.Metrics,
		bookingCfg: p.BookingCfg,
	}
}

func TaskKey(sessionKey string) string {
	return "promote:" + sessionKey
}

func (p *Promoter) Arm(ctx context.Context, ref domain.SessionRef) bool {
	return p.arm(ctx, ref, ReasonSeatFreed)
}

// Rearm restarts promotion from background jobs.
func (p *Promoter) Rearm(ctx context.Context, ref domain.SessionRef, reason string) bool {
	return p.arm(ctx, ref, reason)
}

func (p *Promoter) arm(ctx context.Context, ref domain.SessionRef, reason string) bool {
	requestID := obscontext.RequestIDFromContext(ctx)
	_, scheduled := p.runner.Schedule(TaskKey(ref.SessionKey), p.interval(), func(taskCtx context.Context) (bool, error) {
		if requestID != "" {
			taskCtx = obscontext.WithRequestID(taskCtx, requestID)
		}
		taskCtx = obscontext.WithActor(taskCtx, "system", "promoter")
		taskCtx = obscontext.WithClubID(taskCtx, ref.ClubID.String())
		taskCtx = obscontext.WithSessionKey(taskCtx, ref.SessionKey)
		return p.Tick(taskCtx, ref, reason)
	})
	if scheduled {
		p.log.Info("promoter armed",
			zap.String("session_key", ref.SessionKey),
			zap.String("reason", reason),
		)
	}
	return scheduled
}

func (p *Promoter) interval() time.Duration {
	if p.bookingCfg != nil {
		if interval := p.bookingCfg.Get().PromoterInterval(); interval > 0 {
			return interval
		}
	}
	return config.DefaultBookingConfig().PromoterInterval()
}

// Tick runs one promotion step for ref. It reports done once the session is
// full again, has started, or has nobody left to offer a seat to.
func (p *Promoter) Tick(ctx context.Context, ref domain.SessionRef, reason string) (bool, error) {
	schedMetrics := obsmetrics.Scheduler()
	done, offered, err := p.step(ctx, ref)
	if err != nil {
		schedMetrics.IncPromoterTick(obsmetrics.PromoterTickError)
		return false, err
	}

	switch {
	case offered != nil:
		schedMetrics.IncPromoterTick(obsmetrics.PromoterTickOffered)
		p.metrics.RecordPromotionOffer(ctx, reason)
		p.announce(ctx, offered.booking, offered.capacity)
	case done:
		schedMetrics.IncPromoterTick(obsmetrics.PromoterTickDrained)
	default:
		schedMetrics.IncPromoterTick(obsmetrics.PromoterTickWaiting)
	}
	return done, nil
}

type offer struct {
	booking  *domain.Booking
	capacity int
}

func (p *Promoter) step(ctx context.Context, ref domain.SessionRef) (bool, *offer, error) {
	class, err := p.classSvc.Lookup(ctx, ref.ClubID, ref.ClassID)
	if err != nil {
		if errors.Is(err, classdomain.ErrNotFound) {
			return true, nil, nil
		}
		return false, nil, err
	}
	start, err := class.SessionStart(ref.SessionDate)
	if err != nil {
		return false, nil, err
	}
	now := p.clock.Now().UTC()
	if !now.Before(start) {
		return true, nil, nil
	}
	policy, err := p.clubSvc.Resolve(ctx, ref.ClubID)
	if err != nil {
		return false, nil, err
	}
	ttl := policy.OfferTTL()
	if ttl <= 0 {
		ttl = config.DefaultBookingConfig().OfferTTL()
	}
	expiresAt := now.Add(ttl)
	if expiresAt.After(start) {
		expiresAt = start
	}

	var (
		done    bool
		offered *domain.Booking
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.repo.LockSession(ctx, tx, ref.ClassID, ref.SessionKey); err != nil {
			return err
		}
		counts, err := p.repo.CountSession(ctx, tx, ref.SessionKey, now)
		if err != nil {
			return err
		}
		free := int64(class.Capacity) - counts.Attend
		if free <= 0 {
			done = true
			return nil
		}
		if counts.Offered >= free {
			return nil
		}

		next, err := p.repo.NextEligible(ctx, tx, ref.SessionKey)
		if err != nil {
			return err
		}
		if next == nil {
			done = true
			return nil
		}
		ok, err := p.repo.MarkOffered(ctx, tx, next.ID, now, expiresAt)
		if err != nil || !ok {
			return err
		}
		offeredAt := now
		next.Queued = true
		next.OfferedAt = &offeredAt
		next.OfferExpiresAt = &expiresAt
		next.UpdatedAt = now
		offered = next
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if done {
		p.log.Debug("promotion finished", zap.String("session_key", ref.SessionKey))
	}
	if offered == nil {
		return done, nil, nil
	}
	p.log.Info("seat offered",
		zap.String("session_key", ref.SessionKey),
		zap.String("booking_id", offered.ID.String()),
		zap.Time("offer_expires_at", expiresAt),
	)
	return done, &offer{booking: offered, capacity: class.Capacity}, nil
}

func (p *Promoter) announce(ctx context.Context, booking *domain.Booking, capacity int) {
	expires := ""
	if booking.OfferExpiresAt != nil {
		expires = booking.OfferExpiresAt.UTC().Format(time.RFC3339)
	}
	if p.notifier != nil {
		p.notifier.Notify(ctx, notificationdomain.Message{
			ClubID:     booking.ClubID,
			MemberID:   booking.MemberID,
			Kind:       notificationdomain.KindSeatOffered,
			Subject:    "A seat opened up for you",
			Body:       "A seat is free in a session you are waiting for. Book it before " + expires + ".",
			SessionKey: booking.SessionKey,
			Data: map[string]any{
				"booking_id":       booking.ID.String(),
				"offer_expires_at": expires,
			},
		})
	}
	if p.hub != nil {
		now := p.clock.Now().UTC()
		counts, err := p.repo.CountSession(ctx, p.db, booking.SessionKey, now)
		if err != nil {
			p.log.Warn("failed to count session for live event", zap.String("session_key", booking.SessionKey), zap.Error(err))
			return
		}
		p.hub.Publish(booking.SessionKey, liveevents.Event{
			Type:        liveevents.TypeOffered,
			SessionKey:  booking.SessionKey,
			BookingID:   booking.ID.String(),
			Status:      string(booking.Status),
			AttendCount: counts.Attend,
			WaitCount:   counts.Wait,
			Capacity:    capacity,
			OccurredAt:  now.Format(time.RFC3339),
		})
	}
}
