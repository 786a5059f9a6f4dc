package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/booking/domain"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"github.com/smallbiznis/classbook/pkg/db/pagination"
)

func (s *Service) ListOccurrences(ctx context.Context, classRef string, req domain.ListOccurrencesRequest) (*domain.ListOccurrencesResponse, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}
	classID, err := parseID(classRef)
	if err != nil {
		return nil, err
	}
	class, err := s.classSvc.Lookup(ctx, clubID, classID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	today, err := localToday(class, now)
	if err != nil {
		return nil, err
	}

	windowEnd := today.AddDate(1, 0, 0)
	if s.bookingCfg != nil {
		if days := s.bookingCfg.Get().OccurrenceHorizonDay; days > 0 {
			windowEnd = today.AddDate(0, 0, days)
		}
	}
	if raw := strings.TrimSpace(req.WindowEnd); raw != "" {
		parsed, err := recurrence.ParseDate(raw)
		if err != nil {
			return nil, domain.ErrInvalidWindow
		}
		windowEnd = parsed
	}
	if windowEnd.Before(today) {
		return nil, domain.ErrInvalidWindow
	}

	occurrences := recurrence.Expand(class.Series(), today, windowEnd)
	keys := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		keys = append(keys, occ.SessionKey)
	}

	counts, err := s.repo.CountSessions(ctx, s.db, keys, now)
	if err != nil {
		return nil, err
	}
	mine := map[string]*domain.Booking{}
	if memberID, ok := clubcontext.MemberIDFromContext(ctx); ok && memberID != 0 {
		records, err := s.repo.ListActiveForMember(ctx, s.db, memberID, keys)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			mine[record.SessionKey] = record
		}
	}

	resp := &domain.ListOccurrencesResponse{
		ClassID:     class.ID.String(),
		Timezone:    class.Timezone,
		WindowEnd:   recurrence.FormatDate(windowEnd),
		Occurrences: make([]domain.OccurrenceResponse, 0, len(occurrences)),
	}
	for _, occ := range occurrences {
		start, err := class.SessionStart(occ.Date)
		if err != nil {
			return nil, err
		}
		c := counts[occ.SessionKey]
		item := domain.OccurrenceResponse{
			Date:           recurrence.FormatDate(occ.Date),
			SessionKey:     occ.SessionKey,
			StartAt:        start,
			EndAt:          start.Add(time.Duration(class.DurationMinutes) * time.Minute),
			Duration:       class.DurationMinutes,
			Capacity:       class.Capacity,
			PriceAmount:    class.PriceAmount,
			Currency:       class.Currency,
			AttendCount:    c.Attend,
			WaitCount:      c.Wait,
			RemainingSeats: c.Remaining(class.Capacity),
		}
		if record, ok := mine[occ.SessionKey]; ok {
			item.MyStatus = string(record.Status)
			item.MyBookingRef = record.ID.String()
			if record.OfferOutstanding(now) {
				item.MyOfferExpires = record.OfferExpiresAt
			}
		}
		resp.Occurrences = append(resp.Occurrences, item)
	}
	return resp, nil
}

func (s *Service) GetSessionSummary(ctx context.Context, classRef, dateRef string) (*domain.SessionSummary, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}
	class, date, err := s.loadClass(ctx, clubID, classRef, dateRef)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	today, err := localToday(class, now)
	if err != nil {
		return nil, err
	}
	if !isOccurrence(class, today, date) {
		return nil, domain.ErrSessionNotFound
	}
	policy, err := s.clubSvc.Resolve(ctx, clubID)
	if err != nil {
		return nil, err
	}

	key := recurrence.SessionKey(class.ID.String(), date)
	counts, err := s.repo.CountSession(ctx, s.db, key, now)
	if err != nil {
		return nil, err
	}
	start, err := class.SessionStart(date)
	if err != nil {
		return nil, err
	}

	summary := &domain.SessionSummary{
		ClassID:         class.ID.String(),
		SessionKey:      key,
		Date:            recurrence.FormatDate(date),
		StartAt:         start,
		EndAt:           start.Add(time.Duration(class.DurationMinutes) * time.Minute),
		Capacity:        class.Capacity,
		AttendCount:     counts.Attend,
		WaitCount:       counts.Wait,
		CancelCount:     counts.Cancelled,
		OfferedCount:    counts.Offered,
		RemainingSeats:  counts.Remaining(class.Capacity),
		WaitlistEnabled: policy.WaitlistEnabled,
	}

	if memberID, ok := clubcontext.MemberIDFromContext(ctx); ok && memberID != 0 {
		records, err := s.repo.ListActiveForMember(ctx, s.db, memberID, []string{key})
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			record := records[0]
			summary.MyStatus = string(record.Status)
			summary.MyBookingRef = record.ID.String()
			if record.OfferOutstanding(now) {
				summary.MyOfferExpires = record.OfferExpiresAt
			}
		}
	}
	return summary, nil
}

func (s *Service) Get(ctx context.Context, bookingRef string) (*domain.BookingResponse, error) {
	booking, err := s.visibleBooking(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	return toResponse(booking), nil
}

// visibleBooking loads a booking owned by the caller. Managers see every
// booking of their club.
func (s *Service) visibleBooking(ctx context.Context, bookingRef string) (*domain.Booking, error) {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(bookingRef)
	if err != nil {
		return nil, err
	}
	booking, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.ClubID != clubID {
		return nil, domain.ErrBookingNotFound
	}
	if booking.MemberID != memberID && clubcontext.RoleFromContext(ctx) != clubcontext.RoleManager {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (s *Service) ListMemberBookings(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return domain.ListResponse{}, err
	}

	var status domain.Status
	switch value := domain.Status(strings.ToLower(strings.TrimSpace(req.Status))); value {
	case "":
	case domain.StatusAttend, domain.StatusWait, domain.StatusCancel:
		status = value
	default:
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}

	decoded, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, pagination.ErrInvalidPageToken
	}
	var cursor *domain.BookingCursor
	if decoded != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		cursor = &domain.BookingCursor{CreatedAt: createdAt, ID: id}
	}

	limit := req.Limit()
	items, err := s.repo.ListByMember(ctx, s.db, domain.ListFilter{
		ClubID:   clubID,
		MemberID: memberID,
		Status:   status,
		Cursor:   cursor,
		Limit:    limit + 1,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *domain.Booking) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})

	resp := domain.ListResponse{Bookings: make([]domain.BookingResponse, 0, len(items))}
	for _, item := range items {
		resp.Bookings = append(resp.Bookings, *toResponse(item))
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
