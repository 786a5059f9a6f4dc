package service

import (
	"context"
	"time"

	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"github.com/smallbiznis/classbook/internal/booking/domain"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"go.uber.org/zap"
)

func (s *Service) notify(ctx context.Context, booking *domain.Booking, kind notificationdomain.Kind, subject, body string, data map[string]any) {
	if s.notifier == nil || booking == nil {
		return
	}
	payload := map[string]any{"booking_id": booking.ID.String()}
	for k, v := range data {
		payload[k] = v
	}
	s.notifier.Notify(ctx, notificationdomain.Message{
		ClubID:     booking.ClubID,
		MemberID:   booking.MemberID,
		Kind:       kind,
		Subject:    subject,
		Body:       body,
		SessionKey: booking.SessionKey,
		Data:       payload,
	})
}

// audit records a member-driven booking change. Failures are logged and do not
// undo the change.
func (s *Service) audit(ctx context.Context, booking *domain.Booking, action string, metadata map[string]any) {
	if s.auditSvc == nil || booking == nil {
		return
	}
	clubID := booking.ClubID
	actorID := booking.MemberID.String()
	targetID := booking.ID.String()
	err := s.auditSvc.AuditLog(ctx, &clubID, string(auditdomain.ActorTypeMember), &actorID, action, "booking", &targetID, metadata)
	if err != nil {
		s.log.Warn("audit booking change failed",
			zap.String("action", action),
			zap.String("booking_id", targetID),
			zap.Error(err),
		)
	}
}

// publish pushes the session's current counts to live subscribers.
func (s *Service) publish(ctx context.Context, capacity int, booking *domain.Booking, eventType string) {
	if s.hub == nil || booking == nil {
		return
	}
	now := s.clock.Now().UTC()
	counts, err := s.repo.CountSession(ctx, s.db, booking.SessionKey, now)
	if err != nil {
		s.log.Warn("failed to count session for live event", zap.String("session_key", booking.SessionKey), zap.Error(err))
		return
	}
	s.hub.Publish(booking.SessionKey, liveevents.Event{
		Type:        eventType,
		SessionKey:  booking.SessionKey,
		BookingID:   booking.ID.String(),
		Status:      string(booking.Status),
		AttendCount: counts.Attend,
		WaitCount:   counts.Wait,
		Capacity:    capacity,
		OccurredAt:  now.Format(time.RFC3339),
	})
}

func toResponse(b *domain.Booking) *domain.BookingResponse {
	if b == nil {
		return nil
	}
	return &domain.BookingResponse{
		ID:             b.ID.String(),
		ClassID:        b.ClassID.String(),
		MemberID:       b.MemberID.String(),
		SessionKey:     b.SessionKey,
		SessionDate:    recurrence.FormatDate(b.SessionDate),
		Status:         string(b.Status),
		PaymentMethod:  string(b.PaymentMethod),
		PaymentStatus:  string(b.PaymentStatus),
		PaymentURL:     b.PaymentURL,
		Amount:         b.Amount,
		Currency:       b.Currency,
		Queued:         b.Queued,
		OfferedAt:      b.OfferedAt,
		OfferExpiresAt: b.OfferExpiresAt,
		OfferExpiredAt: b.OfferExpiredAt,
		CancelledAt:    b.CancelledAt,
		CreditGranted:  b.CreditGranted,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}
