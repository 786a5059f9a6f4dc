package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	auditrepo "github.com/smallbiznis/classbook/internal/audit/repository"
	auditservice "github.com/smallbiznis/classbook/internal/audit/service"
	"github.com/smallbiznis/classbook/internal/booking/domain"
	"github.com/smallbiznis/classbook/internal/booking/repository"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	classrepo "github.com/smallbiznis/classbook/internal/classdef/repository"
	classservice "github.com/smallbiznis/classbook/internal/classdef/service"
	"github.com/smallbiznis/classbook/internal/clock"
	clubrepo "github.com/smallbiznis/classbook/internal/club/repository"
	clubservice "github.com/smallbiznis/classbook/internal/club/service"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/config"
	creditdomain "github.com/smallbiznis/classbook/internal/credit/domain"
	creditrepo "github.com/smallbiznis/classbook/internal/credit/repository"
	creditservice "github.com/smallbiznis/classbook/internal/credit/service"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/smallbiznis/classbook/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testClub = snowflake.ID(7)

type recordingPromoter struct {
	mu   sync.Mutex
	refs []domain.SessionRef
}

func (p *recordingPromoter) Arm(_ context.Context, ref domain.SessionRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs = append(p.refs, ref)
	return true
}

func (p *recordingPromoter) armed() []domain.SessionRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SessionRef(nil), p.refs...)
}

type fakeGateway struct {
	startErr  error
	event     *paymentdomain.Event
	cancelled []string
}

func (g *fakeGateway) Provider() string { return "hosted" }

func (g *fakeGateway) Start(_ context.Context, req paymentdomain.StartRequest) (*paymentdomain.Session, error) {
	if g.startErr != nil {
		return nil, g.startErr
	}
	return &paymentdomain.Session{
		Provider:    "hosted",
		Reference:   "chk_" + req.BookingID.String(),
		RedirectURL: "https://pay.example.com/c/" + req.BookingID.String(),
	}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, _ string, reference string) error {
	g.cancelled = append(g.cancelled, reference)
	return nil
}

func (g *fakeGateway) ParseCallback(context.Context, string, []byte, http.Header) (*paymentdomain.Event, error) {
	if g.event == nil {
		return nil, paymentdomain.ErrEventIgnored
	}
	return g.event, nil
}

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	svc      domain.Service
	repo     domain.Repository
	credits  creditdomain.Service
	audits   auditdomain.Service
	promoter *recordingPromoter
	gateway  *fakeGateway
	class    *classdomain.Response
}

func newFixture(t *testing.T, mutate func(*config.BookingConfig)) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	// Monday 2025-01-06 08:00 UTC. The class runs Wednesdays at 18:00.
	clk := clock.NewFakeClock(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))

	cfg := config.DefaultBookingConfig()
	cfg.InPersonPayment = true
	if mutate != nil {
		mutate(&cfg)
	}

	classes := classservice.New(classservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: classrepo.Provide(), Clock: clk,
	})
	clubs := clubservice.New(clubservice.Params{
		DB: db, Log: zap.NewNop(), Repo: clubrepo.Provide(), Clock: clk,
		Defaults: config.NewStaticBookingConfigHolder(cfg),
	})
	credits := creditservice.New(creditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: creditrepo.Provide(), Clock: clk,
	})

	class, err := classes.Create(clubcontext.WithClubID(context.Background(), testClub.Int64()), classdomain.CreateRequest{
		Name:            "Evening Spin",
		AnchorDate:      "2025-01-06",
		StartTime:       "18:00",
		DurationMinutes: 45,
		Timezone:        "UTC",
		Capacity:        2,
		PriceAmount:     1500,
		Currency:        "eur",
		Recurrence: classdomain.RecurrenceRequest{
			Frequency: "weekly",
			Interval:  1,
			Weekdays:  []string{"wednesday"},
		},
	})
	require.NoError(t, err)

	audits := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide(),
	})

	f := &fixture{
		db:       db,
		clock:    clk,
		repo:     repository.Provide(),
		credits:  credits,
		audits:   audits,
		promoter: &recordingPromoter{},
		gateway:  &fakeGateway{},
		class:    class,
	}
	f.svc = New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       f.repo,
		Clock:      clk,
		ClassSvc:   classes,
		ClubSvc:    clubs,
		CreditSvc:  credits,
		Promoter:   f.promoter,
		Payments:   f.gateway,
		AuditSvc:   f.audits,
		BookingCfg: config.NewStaticBookingConfigHolder(cfg),
	})
	return f
}

func member(id int64) context.Context {
	ctx := clubcontext.WithClubID(context.Background(), testClub.Int64())
	return clubcontext.WithMemberID(ctx, id)
}

func (f *fixture) book(t *testing.T, memberID int64, method string) *domain.BookResponse {
	t.Helper()
	resp, err := f.svc.Book(member(memberID), domain.BookRequest{
		ClassID:       f.class.ID,
		Date:          "2025-01-08",
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return resp
}

func TestBookFillsCapacityThenWaitlists(t *testing.T) {
	f := newFixture(t, nil)

	first := f.book(t, 1, "in_person")
	second := f.book(t, 2, "in_person")
	third := f.book(t, 3, "in_person")

	assert.Equal(t, domain.OutcomeAttend, first.Outcome)
	assert.Equal(t, domain.OutcomeAttend, second.Outcome)
	assert.Equal(t, domain.OutcomeWaitlisted, third.Outcome)
	assert.Equal(t, "wait", third.Booking.Status)
	assert.Equal(t, "pending", first.Booking.PaymentStatus)

	summary, err := f.svc.GetSessionSummary(member(3), f.class.ID, "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-08_"+f.class.ID, summary.SessionKey)
	assert.Equal(t, int64(2), summary.AttendCount)
	assert.Equal(t, int64(1), summary.WaitCount)
	assert.Equal(t, int64(0), summary.RemainingSeats)
	assert.Equal(t, "wait", summary.MyStatus)
	assert.Equal(t, third.Booking.ID, summary.MyBookingRef)
	assert.Equal(t, int64(0), summary.CancelCount)

	_, err = f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)

	summary, err = f.svc.GetSessionSummary(member(3), f.class.ID, "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.AttendCount)
	assert.Equal(t, int64(1), summary.WaitCount)
	assert.Equal(t, int64(1), summary.CancelCount)
	assert.Equal(t, int64(1), summary.RemainingSeats)
}

func TestBookSameSessionTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t, nil)

	first := f.book(t, 1, "")
	again := f.book(t, 1, "")

	assert.Equal(t, domain.OutcomeAttend, first.Outcome)
	assert.Equal(t, domain.OutcomeRejectedDuplicate, again.Outcome)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)
}

func TestConcurrentBookingNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t, nil)

	const members = 12
	outcomes := make(chan domain.Outcome, members)
	var wg sync.WaitGroup
	for i := 1; i <= members; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			resp, err := f.svc.Book(member(id), domain.BookRequest{
				ClassID: f.class.ID, Date: "2025-01-08", PaymentMethod: "in_person",
			})
			if assert.NoError(t, err) {
				outcomes <- resp.Outcome
			}
		}(int64(i))
	}
	wg.Wait()
	close(outcomes)

	tally := map[domain.Outcome]int{}
	for outcome := range outcomes {
		tally[outcome]++
	}
	assert.Equal(t, 2, tally[domain.OutcomeAttend])
	assert.Equal(t, members-2, tally[domain.OutcomeWaitlisted])

	summary, err := f.svc.GetSessionSummary(member(1), f.class.ID, "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.AttendCount)
	assert.Equal(t, int64(members-2), summary.WaitCount)
}

func TestWaitlistDisabledRejectsFullSession(t *testing.T) {
	f := newFixture(t, func(cfg *config.BookingConfig) { cfg.WaitlistEnabled = false })

	f.book(t, 1, "in_person")
	f.book(t, 2, "in_person")
	third := f.book(t, 3, "in_person")

	assert.Equal(t, domain.OutcomeRejectedFull, third.Outcome)
	assert.Nil(t, third.Booking)

	_, err := f.svc.Enqueue(member(3), domain.EnqueueRequest{ClassID: f.class.ID, Date: "2025-01-08"})
	assert.ErrorIs(t, err, domain.ErrWaitlistDisabled)
}

func TestBookRejectsUnknownAndStartedSessions(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: "2025-01-07"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: "08-01-2025"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = f.svc.Book(member(1), domain.BookRequest{ClassID: "999", Date: "2025-01-08"})
	assert.ErrorIs(t, err, classdomain.ErrNotFound)

	_, err = f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: "2025-01-08", PaymentMethod: "cash"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	f.clock.Set(time.Date(2025, 1, 8, 18, 0, 0, 0, time.UTC))
	_, err = f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: "2025-01-08"})
	assert.ErrorIs(t, err, domain.ErrSessionStarted)
}

func TestInPersonPaymentNeedsClubPolicy(t *testing.T) {
	f := newFixture(t, func(cfg *config.BookingConfig) { cfg.InPersonPayment = false })

	_, err := f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: "2025-01-08", PaymentMethod: "in_person"})
	assert.ErrorIs(t, err, domain.ErrInPersonPaymentDisabled)
}

func TestBookWithCreditConsumesBalance(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: "2025-01-08", PaymentMethod: "credit"})
	assert.ErrorIs(t, err, creditdomain.ErrInsufficientCredit)

	_, err = f.credits.Grant(context.Background(), f.db, 1, testClub, 555)
	require.NoError(t, err)

	resp := f.book(t, 1, "credit")
	assert.Equal(t, domain.OutcomeAttend, resp.Outcome)
	assert.Equal(t, "paid", resp.Booking.PaymentStatus)

	available, err := f.credits.Available(context.Background(), 1, testClub)
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)
}

func TestEnqueueConflicts(t *testing.T) {
	f := newFixture(t, nil)
	req := domain.EnqueueRequest{ClassID: f.class.ID, Date: "2025-01-08"}

	_, err := f.svc.Enqueue(member(3), req)
	assert.ErrorIs(t, err, domain.ErrSeatsAvailable)

	f.book(t, 1, "in_person")
	f.book(t, 2, "in_person")

	_, err = f.svc.Enqueue(member(1), req)
	assert.ErrorIs(t, err, domain.ErrAlreadyBooked)

	queued, err := f.svc.Enqueue(member(3), req)
	require.NoError(t, err)
	assert.Equal(t, "wait", queued.Status)

	_, err = f.svc.Enqueue(member(3), req)
	assert.ErrorIs(t, err, domain.ErrAlreadyBooked)
}

func TestCancelFreesSeatAndArmsPromoter(t *testing.T) {
	f := newFixture(t, nil)

	first := f.book(t, 1, "in_person")
	f.book(t, 2, "in_person")
	waiting := f.book(t, 3, "in_person")

	cancelled, err := f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancel", cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	armed := f.promoter.armed()
	require.Len(t, armed, 1)
	assert.Equal(t, waiting.Booking.SessionKey, armed[0].SessionKey)

	again, err := f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancel", again.Status)
	assert.Len(t, f.promoter.armed(), 1)

	_, err = f.svc.Cancel(member(2), first.Booking.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestCancelWritesAuditEntry(t *testing.T) {
	f := newFixture(t, nil)

	first := f.book(t, 1, "in_person")
	_, err := f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)
	// A repeated cancel changes nothing and is not audited again.
	_, err = f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)

	resp, err := f.audits.List(member(1), auditdomain.ListAuditLogRequest{Action: "booking.cancel"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "member", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "1", *entry.ActorID)
	assert.Equal(t, "booking", entry.TargetType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, first.Booking.ID, *entry.TargetID)
	assert.Equal(t, first.Booking.SessionKey, entry.Metadata["session_key"])
	assert.Equal(t, "attend", entry.Metadata["from_status"])
	assert.Equal(t, false, entry.Metadata["credit_granted"])
}

func TestWaitlistedMemberKeepsReferenceWhenSeatOpens(t *testing.T) {
	f := newFixture(t, nil)

	first := f.book(t, 1, "in_person")
	f.book(t, 2, "in_person")
	waiting := f.book(t, 3, "in_person")

	_, err := f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)

	promoted := f.book(t, 3, "in_person")
	assert.Equal(t, domain.OutcomeAttend, promoted.Outcome)
	assert.Equal(t, waiting.Booking.ID, promoted.Booking.ID)
}

func TestOutstandingOfferDoesNotHoldSeat(t *testing.T) {
	f := newFixture(t, nil)
	req := domain.EnqueueRequest{ClassID: f.class.ID, Date: "2025-01-08"}

	first := f.book(t, 1, "in_person")
	f.book(t, 2, "in_person")
	waiting := f.book(t, 3, "in_person")

	_, err := f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)

	waitingID, err := snowflake.ParseString(waiting.Booking.ID)
	require.NoError(t, err)
	now := f.clock.Now()
	offered, err := f.repo.MarkOffered(context.Background(), f.db, waitingID, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.True(t, offered)

	summary, err := f.svc.GetSessionSummary(member(4), f.class.ID, "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.AttendCount)
	assert.Equal(t, int64(1), summary.OfferedCount)
	assert.Equal(t, int64(1), summary.RemainingSeats)

	_, err = f.svc.Enqueue(member(5), req)
	assert.ErrorIs(t, err, domain.ErrSeatsAvailable)

	direct := f.book(t, 4, "in_person")
	assert.Equal(t, domain.OutcomeAttend, direct.Outcome)

	late := f.book(t, 3, "in_person")
	assert.Equal(t, domain.OutcomeWaitlisted, late.Outcome)
	assert.Equal(t, waiting.Booking.ID, late.Booking.ID)

	summary, err = f.svc.GetSessionSummary(member(4), f.class.ID, "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.AttendCount)
	assert.Equal(t, int64(0), summary.RemainingSeats)
	assert.Equal(t, int64(1), summary.CancelCount)
}

func TestRebookAfterCancelCreatesFreshRecord(t *testing.T) {
	f := newFixture(t, nil)

	first := f.book(t, 1, "in_person")
	_, err := f.svc.Cancel(member(1), first.Booking.ID)
	require.NoError(t, err)

	again := f.book(t, 1, "in_person")
	assert.Equal(t, domain.OutcomeAttend, again.Outcome)
	assert.NotEqual(t, first.Booking.ID, again.Booking.ID)

	_, err = f.svc.Get(member(1), first.Booking.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestCancelGrantsCreditOnlyAfterCutoff(t *testing.T) {
	cases := []struct {
		name     string
		cancelAt time.Time
		want     bool
	}{
		{name: "well ahead of the session", cancelAt: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), want: false},
		{name: "exactly at cutoff", cancelAt: time.Date(2025, 1, 7, 18, 0, 0, 0, time.UTC), want: false},
		{name: "inside the grace window", cancelAt: time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			resp := f.book(t, 1, "online")
			id, err := snowflake.ParseString(resp.Booking.ID)
			require.NoError(t, err)

			_, err = f.repo.UpdatePayment(context.Background(), f.db, id,
				domain.PaymentUpdate{Status: domain.PaymentStatusPaid, Provider: "hosted", Ref: "chk_" + resp.Booking.ID},
				[]domain.PaymentStatus{domain.PaymentStatusPending}, f.clock.Now())
			require.NoError(t, err)

			f.clock.Set(tc.cancelAt)
			cancelled, err := f.svc.Cancel(member(1), resp.Booking.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, cancelled.CreditGranted)

			available, err := f.credits.Available(context.Background(), 1, testClub)
			require.NoError(t, err)
			if tc.want {
				assert.Equal(t, int64(1), available)
			} else {
				assert.Equal(t, int64(0), available)
			}
		})
	}
}

func TestOnlineBookingStartsPayment(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.book(t, 1, "online")
	assert.Equal(t, domain.OutcomeAttend, resp.Outcome)
	assert.Equal(t, "pending", resp.Booking.PaymentStatus)
	assert.Equal(t, "https://pay.example.com/c/"+resp.Booking.ID, resp.Booking.PaymentURL)

	_, err := f.svc.Cancel(member(1), resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"chk_" + resp.Booking.ID}, f.gateway.cancelled)
}

func TestPaymentStartFailureKeepsSeatAndRetries(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.startErr = errors.New("provider down")

	resp := f.book(t, 1, "online")
	assert.Equal(t, domain.OutcomeAttend, resp.Outcome)
	assert.Equal(t, "failed", resp.Booking.PaymentStatus)

	_, err := f.svc.RetryPayment(member(1), resp.Booking.ID)
	require.Error(t, err)

	f.gateway.startErr = nil
	retried, err := f.svc.RetryPayment(member(1), resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", retried.PaymentStatus)

	_, err = f.svc.RetryPayment(member(1), resp.Booking.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotRetryable)
}

func TestHandlePaymentCallbackMarksPaid(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.book(t, 1, "online")
	id, err := snowflake.ParseString(resp.Booking.ID)
	require.NoError(t, err)

	f.gateway.event = &paymentdomain.Event{
		Provider:  "hosted",
		Reference: "chk_other",
		Type:      paymentdomain.EventTypeConfirmed,
		BookingID: id,
	}
	err = f.svc.HandlePaymentCallback(context.Background(), "hosted", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrPaymentMismatch)

	f.gateway.event.Reference = "chk_" + resp.Booking.ID
	require.NoError(t, f.svc.HandlePaymentCallback(context.Background(), "hosted", []byte(`{}`), http.Header{}))

	got, err := f.svc.Get(member(1), resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.PaymentStatus)

	f.gateway.event = nil
	assert.NoError(t, f.svc.HandlePaymentCallback(context.Background(), "hosted", []byte(`{}`), http.Header{}))
}

func TestListOccurrencesAnnotatesMemberState(t *testing.T) {
	f := newFixture(t, nil)
	booked := f.book(t, 1, "in_person")

	resp, err := f.svc.ListOccurrences(member(1), f.class.ID, domain.ListOccurrencesRequest{WindowEnd: "2025-01-22"})
	require.NoError(t, err)
	require.Len(t, resp.Occurrences, 3)
	assert.Equal(t, "2025-01-08", resp.Occurrences[0].Date)
	assert.Equal(t, "attend", resp.Occurrences[0].MyStatus)
	assert.Equal(t, booked.Booking.ID, resp.Occurrences[0].MyBookingRef)
	assert.Equal(t, int64(1), resp.Occurrences[0].RemainingSeats)
	assert.Equal(t, int64(2), resp.Occurrences[1].RemainingSeats)
	assert.Empty(t, resp.Occurrences[1].MyStatus)
	assert.Equal(t, time.Date(2025, 1, 8, 18, 45, 0, 0, time.UTC), resp.Occurrences[0].EndAt.UTC())

	_, err = f.svc.ListOccurrences(member(1), f.class.ID, domain.ListOccurrencesRequest{WindowEnd: "2025-01-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestListMemberBookingsPaginates(t *testing.T) {
	f := newFixture(t, nil)
	for _, date := range []string{"2025-01-08", "2025-01-15", "2025-01-22"} {
		_, err := f.svc.Book(member(1), domain.BookRequest{ClassID: f.class.ID, Date: date, PaymentMethod: "in_person"})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	req := domain.ListRequest{}
	req.PageSize = 2
	page, err := f.svc.ListMemberBookings(member(1), req)
	require.NoError(t, err)
	require.Len(t, page.Bookings, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "2025-01-22", page.Bookings[0].SessionDate)

	req.PageToken = page.NextPageToken
	next, err := f.svc.ListMemberBookings(member(1), req)
	require.NoError(t, err)
	require.Len(t, next.Bookings, 1)
	assert.Equal(t, "2025-01-08", next.Bookings[0].SessionDate)

	_, err = f.svc.ListMemberBookings(member(1), domain.ListRequest{Status: "gone"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
