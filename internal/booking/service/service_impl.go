package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	"github.com/smallbiznis/classbook/internal/clock"
	clubdomain "github.com/smallbiznis/classbook/internal/club/domain"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/config"
	"github.com/smallbiznis/classbook/internal/credit"
	creditdomain "github.com/smallbiznis/classbook/internal/credit/domain"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/classbook/internal/observability/metrics"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"github.com/smallbiznis/classbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	ClassSvc   classdomain.Service
	ClubSvc    clubdomain.Service
	CreditSvc  creditdomain.Service
	Promoter   domain.Promoter             `optional:"true"`
	Notifier   notificationdomain.Notifier `optional:"true"`
	Payments   domain.PaymentGateway       `optional:"true"`
	Hub        *liveevents.Hub             `optional:"true"`
	AuditSvc   auditdomain.Service         `optional:"true"`
	Metrics    *obsmetrics.Metrics         `optional:"true"`
	BookingCfg *config.BookingConfigHolder `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	classSvc   classdomain.Service
	clubSvc    clubdomain.Service
	creditSvc  creditdomain.Service
	promoter   domain.Promoter
	notifier   notificationdomain.Notifier
	payments   domain.PaymentGateway
	hub        *liveevents.Hub
	auditSvc   auditdomain.Service
	metrics    *obsmetrics.Metrics
	bookingCfg *config.BookingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("booking.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		classSvc:   p.ClassSvc,
		clubSvc:    p.ClubSvc,
		creditSvc:  p.CreditSvc,
		promoter:   p.Promoter,
		notifier:   p.Notifier,
		payments:   p.Payments,
		hub:        p.Hub,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
		bookingCfg: p.BookingCfg,
	}
}

type admission struct {
	class    *classdomain.ClassDefinition
	policy   clubdomain.Policy
	clubID   snowflake.ID
	memberID snowflake.ID
	date     time.Time
	key      string
	method   domain.PaymentMethod
	now      time.Time
}

func (s *Service) Book(ctx context.Context, req domain.BookRequest) (*domain.BookResponse, error) {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, domain.ErrInvalidPaymentMethod
	}
	class, date, err := s.loadClass(ctx, clubID, req.ClassID, req.Date)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := ensureBookable(class, date, now); err != nil {
		return nil, err
	}

	policy, err := s.clubSvc.Resolve(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if method != domain.PaymentOnline && !policy.InPersonPaymentEnabled {
		return nil, domain.ErrInPersonPaymentDisabled
	}
	if method == domain.PaymentCredit {
		available, err := s.creditSvc.Available(ctx, memberID, clubID)
		if err != nil {
			return nil, err
		}
		if available < 1 {
			return nil, creditdomain.ErrInsufficientCredit
		}
	}

	a := admission{
		class:    class,
		policy:   policy,
		clubID:   clubID,
		memberID: memberID,
		date:     date,
		key:      recurrence.SessionKey(class.ID.String(), date),
		method:   method,
		now:      now,
	}

	var (
		outcome domain.Outcome
		booking *domain.Booking
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		outcome, booking, txErr = s.admit(ctx, tx, a)
		return txErr
	})
	if err != nil && db.IsDuplicateKeyErr(err) {
		outcome, booking, err = s.settleRace(ctx, memberID, a.key, err)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBookingOutcome(ctx, string(outcome), string(method))
	s.log.Info("booking decided",
		zap.String("session_key", a.key),
		zap.String("member_id", memberID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("payment_method", string(method)),
	)

	switch outcome {
	case domain.OutcomeAttend:
		s.notify(ctx, booking, notificationdomain.KindBookingConfirmed,
			"Booking confirmed", "Your seat in "+class.Name+" on "+recurrence.FormatDate(date)+" is confirmed.", nil)
		_ = s.startPayment(ctx, class, booking)
		s.publish(ctx, class.Capacity, booking, liveevents.TypeBooked)
	case domain.OutcomeWaitlisted:
		s.notify(ctx, booking, notificationdomain.KindBookingWaitlisted,
			"You are on the waitlist", "The "+class.Name+" session on "+recurrence.FormatDate(date)+" is full. We will let you know when a seat opens.", nil)
		s.publish(ctx, class.Capacity, booking, liveevents.TypeWaitlisted)
	}

	resp := &domain.BookResponse{Outcome: outcome}
	if booking != nil {
		resp.Booking = toResponse(booking)
	}
	return resp, nil
}

// admit runs the capacity decision for one booking request. It must be
// called inside a transaction.
func (s *Service) admit(ctx context.Context, tx *gorm.DB, a admission) (domain.Outcome, *domain.Booking, error) {
	if err := s.repo.LockSession(ctx, tx, a.class.ID, a.key); err != nil {
		return "", nil, err
	}

	existing, err := s.repo.ListForMemberSession(ctx, tx, a.memberID, a.key)
	if err != nil {
		return "", nil, err
	}
	var (
		waiting    *domain.Booking
		superseded []snowflake.ID
	)
	for _, b := range existing {
		switch b.Status {
		case domain.StatusAttend:
			return domain.OutcomeRejectedDuplicate, b, nil
		case domain.StatusWait:
			waiting = b
		default:
			superseded = append(superseded, b.ID)
		}
	}
	if err := s.repo.DeleteByIDs(ctx, tx, superseded); err != nil {
		return "", nil, err
	}

	record, from := waiting, domain.StatusWait
	if record == nil {
		record = s.newRecord(a, domain.StatusInitial)
		if err := s.repo.Insert(ctx, tx, record); err != nil {
			return "", nil, err
		}
		from = domain.StatusInitial
	}

	paymentStatus := initialPaymentStatus(a.method, record.Amount)
	admitted, err := s.repo.Admit(ctx, tx, record.ID, from, a.key, a.class.Capacity, a.method, paymentStatus, a.now)
	if err != nil {
		return "", nil, err
	}
	if admitted {
		if a.method == domain.PaymentCredit {
			if err := s.creditSvc.Consume(ctx, tx, a.memberID, a.clubID, record.ID); err != nil {
				return "", nil, err
			}
		}
		record.Status = domain.StatusAttend
		record.PaymentMethod = a.method
		record.PaymentStatus = paymentStatus
		record.Queued = false
		record.UpdatedAt = a.now
		return domain.OutcomeAttend, record, nil
	}

	if waiting != nil {
		return domain.OutcomeWaitlisted, waiting, nil
	}
	if !a.policy.WaitlistEnabled {
		if err := s.repo.DeleteByIDs(ctx, tx, []snowflake.ID{record.ID}); err != nil {
			return "", nil, err
		}
		return domain.OutcomeRejectedFull, nil, nil
	}
	if _, err := s.repo.SetStatus(ctx, tx, record.ID, domain.StatusInitial, domain.StatusWait, a.now); err != nil {
		return "", nil, err
	}
	record.Status = domain.StatusWait
	return domain.OutcomeWaitlisted, record, nil
}

// settleRace turns a unique-index violation into the outcome the winner of
// the race left behind.
func (s *Service) settleRace(ctx context.Context, memberID snowflake.ID, key string, cause error) (domain.Outcome, *domain.Booking, error) {
	existing, err := s.repo.ListForMemberSession(ctx, s.db, memberID, key)
	if err != nil {
		return "", nil, err
	}
	for _, b := range existing {
		switch b.Status {
		case domain.StatusAttend:
			return domain.OutcomeRejectedDuplicate, b, nil
		case domain.StatusWait:
			return domain.OutcomeWaitlisted, b, nil
		}
	}
	return "", nil, cause
}

func (s *Service) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.BookingResponse, error) {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	class, date, err := s.loadClass(ctx, clubID, req.ClassID, req.Date)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := ensureBookable(class, date, now); err != nil {
		return nil, err
	}
	policy, err := s.clubSvc.Resolve(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if !policy.WaitlistEnabled {
		return nil, domain.ErrWaitlistDisabled
	}

	a := admission{
		class:    class,
		policy:   policy,
		clubID:   clubID,
		memberID: memberID,
		date:     date,
		key:      recurrence.SessionKey(class.ID.String(), date),
		method:   domain.PaymentOnline,
		now:      now,
	}

	var record *domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.LockSession(ctx, tx, class.ID, a.key); err != nil {
			return err
		}
		existing, err := s.repo.ListForMemberSession(ctx, tx, memberID, a.key)
		if err != nil {
			return err
		}
		var superseded []snowflake.ID
		for _, b := range existing {
			if b.Active() {
				return domain.ErrAlreadyBooked
			}
			superseded = append(superseded, b.ID)
		}

		counts, err := s.repo.CountSession(ctx, tx, a.key, now)
		if err != nil {
			return err
		}
		if counts.Attend < int64(class.Capacity) {
			return domain.ErrSeatsAvailable
		}
		if err := s.repo.DeleteByIDs(ctx, tx, superseded); err != nil {
			return err
		}

		record = s.newRecord(a, domain.StatusWait)
		return s.repo.Insert(ctx, tx, record)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyBooked
		}
		return nil, err
	}

	s.metrics.RecordBookingOutcome(ctx, string(domain.OutcomeWaitlisted), string(record.PaymentMethod))
	s.notify(ctx, record, notificationdomain.KindBookingWaitlisted,
		"You are on the waitlist", "We will let you know when a seat in "+class.Name+" opens.", nil)
	s.publish(ctx, class.Capacity, record, liveevents.TypeWaitlisted)
	return toResponse(record), nil
}

func (s *Service) Cancel(ctx context.Context, bookingRef string) (*domain.BookingResponse, error) {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(bookingRef)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ClubID != clubID || current.MemberID != memberID {
		return nil, domain.ErrBookingNotFound
	}
	if current.Status == domain.StatusCancel {
		return toResponse(current), nil
	}

	// Class and policy are read before the transaction opens. A class that
	// was deleted since still lets the member cancel.
	class, err := s.classSvc.Lookup(ctx, clubID, current.ClassID)
	if err != nil && !errors.Is(err, classdomain.ErrNotFound) {
		return nil, err
	}
	policy, err := s.clubSvc.Resolve(ctx, clubID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var (
		before  domain.Booking
		after   *domain.Booking
		changed bool
		granted bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if latest == nil {
			return domain.ErrBookingNotFound
		}
		before = *latest

		ok, err := s.repo.Cancel(ctx, tx, id, memberID, now)
		if err != nil {
			return err
		}
		after = latest
		if !ok {
			return nil
		}
		changed = true
		cancelledAt := now
		after.Status = domain.StatusCancel
		after.CancelledAt = &cancelledAt
		after.UpdatedAt = now

		if before.Status == domain.StatusAttend && class != nil {
			granted, err = s.evaluateCredit(ctx, tx, class, policy, after, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return toResponse(after), nil
	}

	s.metrics.RecordCancellation(ctx, string(before.Status), granted)
	s.log.Info("booking cancelled",
		zap.String("booking_id", id.String()),
		zap.String("session_key", before.SessionKey),
		zap.String("from_status", string(before.Status)),
		zap.Bool("credit_granted", granted),
	)
	s.audit(ctx, after, "booking.cancel", map[string]any{
		"session_key":    before.SessionKey,
		"from_status":    string(before.Status),
		"credit_granted": granted,
		"payment_ref":    before.PaymentRef,
	})

	capacity := 0
	if class != nil {
		capacity = class.Capacity
		freedSeat := before.Status == domain.StatusAttend || before.OfferOutstanding(now)
		if freedSeat {
			s.armPromoter(ctx, class, after, now)
		}
	}

	s.publish(ctx, capacity, after, liveevents.TypeCancelled)
	s.notify(ctx, after, notificationdomain.KindBookingCancelled,
		"Booking cancelled", "Your booking "+after.ID.String()+" has been cancelled.", nil)
	if granted {
		s.notify(ctx, after, notificationdomain.KindCreditGranted,
			"You received a class credit", "Your cancellation earned one class credit.", nil)
	}
	if before.PaymentMethod == domain.PaymentOnline && before.PaymentStatus == domain.PaymentStatusPending {
		s.cancelPayment(ctx, after)
	}

	return toResponse(after), nil
}

// evaluateCredit grants a credit for a cancelled, provider-paid booking when
// the cancellation falls after the club's cutoff.
func (s *Service) evaluateCredit(ctx context.Context, tx *gorm.DB, class *classdomain.ClassDefinition, policy clubdomain.Policy, booking *domain.Booking, now time.Time) (bool, error) {
	if booking.PaymentMethod != domain.PaymentOnline || booking.PaymentStatus != domain.PaymentStatusPaid || booking.CreditGranted {
		return false, nil
	}
	start, err := class.SessionStart(booking.SessionDate)
	if err != nil {
		return false, err
	}
	if !credit.QualifiesForCredit(now, start, policy.Grace()) {
		return false, nil
	}

	granted, err := s.creditSvc.Grant(ctx, tx, booking.MemberID, booking.ClubID, booking.ID)
	if err != nil || !granted {
		return false, err
	}
	if _, err := s.repo.MarkCreditGranted(ctx, tx, booking.ID, now); err != nil {
		return false, err
	}
	booking.CreditGranted = true
	return true, nil
}

// armPromoter starts promotion when the session has room again.
func (s *Service) armPromoter(ctx context.Context, class *classdomain.ClassDefinition, booking *domain.Booking, now time.Time) {
	if s.promoter == nil {
		return
	}
	counts, err := s.repo.CountSession(ctx, s.db, booking.SessionKey, now)
	if err != nil {
		s.log.Warn("failed to count session for promotion", zap.String("session_key", booking.SessionKey), zap.Error(err))
		return
	}
	if counts.Attend >= int64(class.Capacity) || counts.Wait == 0 {
		return
	}
	s.promoter.Arm(ctx, domain.SessionRef{
		ClubID:      booking.ClubID,
		ClassID:     booking.ClassID,
		SessionKey:  booking.SessionKey,
		SessionDate: booking.SessionDate,
	})
}

func (s *Service) newRecord(a admission, status domain.Status) *domain.Booking {
	return &domain.Booking{
		ID:            s.genID.Generate(),
		ClubID:        a.clubID,
		ClassID:       a.class.ID,
		MemberID:      a.memberID,
		SessionKey:    a.key,
		SessionDate:   recurrence.Civil(a.date),
		Status:        status,
		PaymentMethod: a.method,
		PaymentStatus: domain.PaymentStatusNone,
		Amount:        a.class.PriceAmount,
		Currency:      a.class.Currency,
		Metadata:      datatypes.JSONMap{},
		CreatedAt:     a.now,
		UpdatedAt:     a.now,
	}
}

func (s *Service) loadClass(ctx context.Context, clubID snowflake.ID, classRef, dateRef string) (*classdomain.ClassDefinition, time.Time, error) {
	classID, err := parseID(classRef)
	if err != nil {
		return nil, time.Time{}, err
	}
	date, err := recurrence.ParseDate(dateRef)
	if err != nil {
		return nil, time.Time{}, domain.ErrInvalidDate
	}
	class, err := s.classSvc.Lookup(ctx, clubID, classID)
	if err != nil {
		return nil, time.Time{}, err
	}
	return class, date, nil
}

// ensureBookable checks that date is an upcoming occurrence of class that
// has not started yet.
func ensureBookable(class *classdomain.ClassDefinition, date, now time.Time) error {
	today, err := localToday(class, now)
	if err != nil {
		return err
	}
	if !recurrence.Contains(class.Series(), today, date) {
		return domain.ErrSessionNotFound
	}
	start, err := class.SessionStart(date)
	if err != nil {
		return err
	}
	if !now.Before(start) {
		return domain.ErrSessionStarted
	}
	return nil
}

// isOccurrence accepts past sessions too, expanding them from the anchor.
func isOccurrence(class *classdomain.ClassDefinition, today, date time.Time) bool {
	series := class.Series()
	if recurrence.Civil(date).Before(today) {
		return recurrence.Contains(series, series.Anchor, date)
	}
	return recurrence.Contains(series, today, date)
}

func localToday(class *classdomain.ClassDefinition, now time.Time) (time.Time, error) {
	loc, err := classdomain.LoadTimezone(class.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return recurrence.Civil(now.In(loc)), nil
}

func initialPaymentStatus(method domain.PaymentMethod, amount int64) domain.PaymentStatus {
	switch {
	case method == domain.PaymentCredit:
		return domain.PaymentStatusPaid
	case amount <= 0:
		return domain.PaymentStatusWaived
	case method == domain.PaymentInPerson:
		return domain.PaymentStatusPending
	default:
		return domain.PaymentStatusNone
	}
}

func actor(ctx context.Context) (snowflake.ID, snowflake.ID, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return 0, 0, domain.ErrInvalidClub
	}
	memberID, ok := clubcontext.MemberIDFromContext(ctx)
	if !ok || memberID == 0 {
		return 0, 0, domain.ErrInvalidMember
	}
	return clubID, memberID, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
