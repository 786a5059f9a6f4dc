package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	bookingrepo "github.com/smallbiznis/classbook/internal/booking/repository"
	classrepo "github.com/smallbiznis/classbook/internal/classdef/repository"
	classservice "github.com/smallbiznis/classbook/internal/classdef/service"
	"github.com/smallbiznis/classbook/internal/clock"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	"github.com/smallbiznis/classbook/internal/notification/mocks"
	"github.com/smallbiznis/classbook/internal/promotion"
	schedtest "github.com/smallbiznis/classbook/internal/scheduler/testing"
	"github.com/smallbiznis/classbook/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type rearmCall struct {
	ref    bookingdomain.SessionRef
	reason string
}

type fakeRearmer struct {
	mu    sync.Mutex
	calls []rearmCall
}

func (f *fakeRearmer) Rearm(_ context.Context, ref bookingdomain.SessionRef, reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rearmCall{ref: ref, reason: reason})
	return true
}

type fakeLocker struct {
	held     bool
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	return "token:" + key, true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

type sweepFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	repo     bookingdomain.Repository
	rearmer  *fakeRearmer
	sched    *Scheduler
	notifier *mocks.MockNotifier
}

func newSweepFixture(t *testing.T, locker SweepLocker) *sweepFixture {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	ctrl := gomock.NewController(t)

	f := &sweepFixture{
		db:       db,
		node:     node,
		clock:    clk,
		repo:     bookingrepo.Provide(),
		rearmer:  &fakeRearmer{},
		notifier: mocks.NewMockNotifier(ctrl),
	}
	sched, err := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  f.repo,
		ClassSvc: classservice.New(classservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Repo: classrepo.Provide(), Clock: clk,
		}),
		Promoter: f.rearmer,
		Notifier: f.notifier,
		Hub:      liveevents.NewHub(),
		Locker:   locker,
		Config:   Config{BatchSize: 2},
	})
	require.NoError(t, err)
	f.sched = sched
	return f
}

func (f *sweepFixture) insert(t *testing.T, memberID snowflake.ID, sessionKey string, date time.Time, offerExpires *time.Time) *bookingdomain.Booking {
	t.Helper()
	now := f.clock.Now().UTC()
	b := &bookingdomain.Booking{
		ID:            f.node.Generate(),
		ClubID:        7,
		ClassID:       99,
		MemberID:      memberID,
		SessionKey:    sessionKey,
		SessionDate:   date,
		Status:        bookingdomain.StatusWait,
		PaymentMethod: bookingdomain.PaymentOnline,
		PaymentStatus: bookingdomain.PaymentStatusNone,
		Currency:      "EUR",
		Metadata:      datatypes.JSONMap{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if offerExpires != nil {
		offeredAt := now
		b.Queued = true
		b.OfferedAt = &offeredAt
		b.OfferExpiresAt = offerExpires
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.db, b))
	return b
}

func TestExpireOffersJobLapsesOffersAndRearms(t *testing.T) {
	f := newSweepFixture(t, nil)
	date := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	future := f.clock.Now().Add(time.Hour)

	lapsing := []*bookingdomain.Booking{
		f.insert(t, 1, "2025-01-08_99", date, &future),
		f.insert(t, 2, "2025-01-08_99", date, &future),
		f.insert(t, 3, "2025-01-15_99", date.AddDate(0, 0, 7), &future),
	}
	live := f.insert(t, 4, "2025-01-15_99", date.AddDate(0, 0, 7), nil)

	var notified []notificationdomain.Message
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(3).Do(func(_ context.Context, msg notificationdomain.Message) {
		notified = append(notified, msg)
	})

	moved, err := schedtest.NewTimeAccelerator(f.db).LapseAllOffers(context.Background(), f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3), moved)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	for _, b := range lapsing {
		got, err := f.repo.FindByID(context.Background(), f.db, b.ID)
		require.NoError(t, err)
		require.NotNil(t, got.OfferExpiredAt, "booking %s", b.ID)
	}
	got, err := f.repo.FindByID(context.Background(), f.db, live.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OfferExpiredAt)

	for _, msg := range notified {
		assert.Equal(t, notificationdomain.KindOfferExpired, msg.Kind)
	}

	reasons := map[string][]string{}
	for _, call := range f.rearmer.calls {
		reasons[call.ref.SessionKey] = append(reasons[call.ref.SessionKey], call.reason)
	}
	assert.Equal(t, []string{promotion.ReasonOfferExpired}, reasons["2025-01-08_99"])
	assert.Contains(t, reasons["2025-01-15_99"], promotion.ReasonOfferExpired)
	assert.Contains(t, reasons["2025-01-15_99"], promotion.ReasonRecovery)
}

func TestRearmPromotionsJobSkipsPastSessions(t *testing.T) {
	f := newSweepFixture(t, nil)
	f.insert(t, 1, "2025-01-08_99", time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), nil)
	f.insert(t, 2, "2025-01-01_99", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	require.NoError(t, f.sched.RearmPromotionsJob(context.Background()))

	require.Len(t, f.rearmer.calls, 1)
	assert.Equal(t, "2025-01-08_99", f.rearmer.calls[0].ref.SessionKey)
	assert.Equal(t, promotion.ReasonRecovery, f.rearmer.calls[0].reason)
}

func TestClosePastWaitlistsJobCancelsStaleEntries(t *testing.T) {
	f := newSweepFixture(t, nil)
	var stale []*bookingdomain.Booking
	for i := 1; i <= 3; i++ {
		stale = append(stale, f.insert(t, snowflake.ID(i), "2025-01-01_99", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil))
	}
	upcoming := f.insert(t, 9, "2025-01-08_99", time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), nil)

	require.NoError(t, f.sched.ClosePastWaitlistsJob(context.Background()))

	for _, b := range stale {
		got, err := f.repo.FindByID(context.Background(), f.db, b.ID)
		require.NoError(t, err)
		assert.Equal(t, bookingdomain.StatusCancel, got.Status)
	}
	got, err := f.repo.FindByID(context.Background(), f.db, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.StatusWait, got.Status)
}

func TestSweepLockHeldSkipsJob(t *testing.T) {
	locker := &fakeLocker{held: true}
	f := newSweepFixture(t, locker)
	f.insert(t, 1, "2025-01-08_99", time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), nil)

	require.NoError(t, f.sched.runJob(context.Background(), JobRearmPromotions, 2, time.Second, f.sched.RearmPromotionsJob))
	assert.Empty(t, f.rearmer.calls)

	locker.held = false
	require.NoError(t, f.sched.runJob(context.Background(), JobRearmPromotions, 2, time.Second, f.sched.RearmPromotionsJob))
	assert.Len(t, f.rearmer.calls, 1)
	assert.Equal(t, []string{sweepLockPrefix + JobRearmPromotions}, locker.released)
}
