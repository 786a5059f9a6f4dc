package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"go.uber.org/zap"
)

var retryablePaymentStatuses = []domain.PaymentStatus{
	domain.PaymentStatusNone,
	domain.PaymentStatusFailed,
	domain.PaymentStatusCancelled,
}

// startPayment opens a provider checkout for an admitted online booking.
// A provider failure marks the payment failed and keeps the booking.
func (s *Service) startPayment(ctx context.Context, class *classdomain.ClassDefinition, booking *domain.Booking) error {
	if s.payments == nil || booking == nil || booking.PaymentMethod != domain.PaymentOnline || booking.Amount <= 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	description := ""
	if class != nil {
		description = class.Name + " " + recurrence.FormatDate(booking.SessionDate)
	}
	session, startErr := s.payments.Start(ctx, paymentdomain.StartRequest{
		BookingID:   booking.ID,
		ClubID:      booking.ClubID,
		MemberID:    booking.MemberID,
		Amount:      booking.Amount,
		Currency:    booking.Currency,
		Description: description,
		Metadata: map[string]string{
			"session_key": booking.SessionKey,
		},
	})

	update := domain.PaymentUpdate{Status: domain.PaymentStatusFailed, Provider: s.payments.Provider()}
	if startErr == nil {
		update = domain.PaymentUpdate{
			Status:   domain.PaymentStatusPending,
			Provider: session.Provider,
			Ref:      session.Reference,
			URL:      session.RedirectURL,
		}
	} else {
		s.log.Warn("payment start failed",
			zap.String("booking_id", booking.ID.String()),
			zap.String("provider", update.Provider),
			zap.Error(startErr),
		)
	}

	updated, err := s.repo.UpdatePayment(ctx, s.db, booking.ID, update, retryablePaymentStatuses, now)
	if err != nil {
		s.log.Error("failed to record payment session", zap.String("booking_id", booking.ID.String()), zap.Error(err))
		return err
	}
	if updated {
		booking.PaymentStatus = update.Status
		booking.PaymentProvider = update.Provider
		booking.PaymentRef = update.Ref
		booking.PaymentURL = update.URL
		booking.UpdatedAt = now
	}

	if startErr != nil {
		s.notify(ctx, booking, notificationdomain.KindPaymentFailed,
			"Payment could not be started", "Your seat is kept. Retry the payment from your booking.", nil)
		return startErr
	}
	return nil
}

func (s *Service) cancelPayment(ctx context.Context, booking *domain.Booking) {
	if s.payments == nil || booking.PaymentRef == "" {
		return
	}
	if err := s.payments.Cancel(ctx, booking.PaymentProvider, booking.PaymentRef); err != nil {
		s.log.Warn("payment cancel failed", zap.String("booking_id", booking.ID.String()), zap.Error(err))
		return
	}
	update := domain.PaymentUpdate{
		Status:   domain.PaymentStatusCancelled,
		Provider: booking.PaymentProvider,
		Ref:      booking.PaymentRef,
	}
	now := s.clock.Now().UTC()
	if ok, err := s.repo.UpdatePayment(ctx, s.db, booking.ID, update, []domain.PaymentStatus{domain.PaymentStatusPending}, now); err != nil {
		s.log.Warn("failed to record payment cancel", zap.String("booking_id", booking.ID.String()), zap.Error(err))
	} else if ok {
		booking.PaymentStatus = domain.PaymentStatusCancelled
		booking.PaymentURL = ""
	}
}

func (s *Service) RetryPayment(ctx context.Context, bookingRef string) (*domain.BookingResponse, error) {
	booking, err := s.visibleBooking(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	if s.payments == nil || booking.Status != domain.StatusAttend || booking.PaymentMethod != domain.PaymentOnline || booking.Amount <= 0 {
		return nil, domain.ErrPaymentNotRetryable
	}
	retryable := false
	for _, status := range retryablePaymentStatuses {
		if booking.PaymentStatus == status {
			retryable = true
		}
	}
	if !retryable {
		return nil, domain.ErrPaymentNotRetryable
	}

	class, err := s.classSvc.Lookup(ctx, booking.ClubID, booking.ClassID)
	if err != nil && !errors.Is(err, classdomain.ErrNotFound) {
		return nil, err
	}
	if err := s.startPayment(ctx, class, booking); err != nil {
		return nil, err
	}
	return toResponse(booking), nil
}

func (s *Service) HandlePaymentCallback(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	if s.payments == nil {
		return paymentdomain.ErrProviderNotFound
	}
	event, err := s.payments.ParseCallback(ctx, provider, payload, headers)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	booking, err := s.repo.FindByID(ctx, s.db, event.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return domain.ErrBookingNotFound
	}
	if booking.PaymentRef != event.Reference {
		return domain.ErrPaymentMismatch
	}

	now := s.clock.Now().UTC()
	update := domain.PaymentUpdate{
		Provider: booking.PaymentProvider,
		Ref:      booking.PaymentRef,
		URL:      booking.PaymentURL,
	}
	var from []domain.PaymentStatus
	switch event.Type {
	case paymentdomain.EventTypeConfirmed:
		update.Status = domain.PaymentStatusPaid
		update.URL = ""
		from = []domain.PaymentStatus{domain.PaymentStatusPending, domain.PaymentStatusFailed, domain.PaymentStatusCancelled}
	case paymentdomain.EventTypeCancelled:
		update.Status = domain.PaymentStatusCancelled
		from = []domain.PaymentStatus{domain.PaymentStatusPending}
	case paymentdomain.EventTypeFailed:
		update.Status = domain.PaymentStatusFailed
		from = []domain.PaymentStatus{domain.PaymentStatusPending}
	default:
		return nil
	}

	updated, err := s.repo.UpdatePayment(ctx, s.db, booking.ID, update, from, now)
	if err != nil {
		return err
	}
	s.metrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	s.log.Info("payment callback applied",
		zap.String("booking_id", booking.ID.String()),
		zap.String("event_type", event.Type),
		zap.String("correlation_id", event.CorrelationID),
		zap.Bool("updated", updated),
	)
	if !updated {
		return nil
	}
	if booking.Status == domain.StatusCancel && update.Status == domain.PaymentStatusPaid {
		s.log.Warn("payment confirmed for cancelled booking", zap.String("booking_id", booking.ID.String()))
	}

	booking.PaymentStatus = update.Status
	booking.PaymentURL = update.URL
	if update.Status == domain.PaymentStatusFailed {
		s.notify(ctx, booking, notificationdomain.KindPaymentFailed,
			"Payment failed", "Your payment did not go through. Your seat is kept; retry from your booking.", nil)
	}
	s.publish(ctx, 0, booking, liveevents.TypePayment)
	return nil
}
