package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/notification/domain"
	"github.com/smallbiznis/classbook/internal/notification/repository"
	"github.com/smallbiznis/classbook/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingEmail struct {
	mu        sync.Mutex
	templates []string
	to        []string
	err       error
}

func (r *recordingEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return r.err
}

func (r *recordingEmail) SendTemplate(ctx context.Context, to []string, templateName string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = append(r.templates, templateName)
	r.to = append(r.to, to...)
	return r.err
}

type recordingSlack struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSlack) PostMessage(ctx context.Context, channelID string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *gorm.DB, *recordingEmail, *recordingSlack) {
	t.Helper()
	db := dbtest.Open(t)
	mail := &recordingEmail{}
	chat := &recordingSlack{}
	d := NewDispatcher(DispatcherParams{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  repository.Provide(),
		Email: mail,
		Slack: chat,
	})
	return d, db, mail, chat
}

func TestDeliverWritesInboxAndEmail(t *testing.T) {
	d, db, mail, chat := newTestDispatcher(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&domain.Contact{MemberID: 42, ClubID: 7, Email: "m@example.com", DisplayName: "Dana"}).Error)

	err := d.Deliver(ctx, domain.Message{
		ClubID:     7,
		MemberID:   42,
		Kind:       domain.KindSeatOffered,
		Subject:    "A seat opened up",
		Body:       "Book before 08:00",
		SessionKey: "2025-01-06_1",
		Data:       map[string]any{"offer_expires_at": "2025-01-06T08:00:00Z"},
	})
	require.NoError(t, err)

	var items []domain.InboxItem
	require.NoError(t, db.Where("member_id = ?", 42).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "seat_offered", items[0].Kind)
	assert.Equal(t, "2025-01-06_1", items[0].Data["session_key"])

	assert.Equal(t, []string{"seat_offered"}, mail.templates)
	assert.Equal(t, []string{"m@example.com"}, mail.to)
	assert.Empty(t, chat.messages)
}

func TestDeliverSkipsEmailWithoutContact(t *testing.T) {
	d, _, mail, chat := newTestDispatcher(t)

	err := d.Deliver(context.Background(), domain.Message{
		ClubID:   7,
		MemberID: 42,
		Kind:     domain.KindPaymentFailed,
		Subject:  "Payment could not be started",
	})
	require.NoError(t, err)
	assert.Empty(t, mail.templates)
	require.Len(t, chat.messages, 1)
	assert.Contains(t, chat.messages[0], "payment_failed")
}

func TestDeliverJoinsChannelErrors(t *testing.T) {
	d, db, mail, _ := newTestDispatcher(t)
	mail.err = errors.New("smtp down")
	require.NoError(t, db.Create(&domain.Contact{MemberID: 42, ClubID: 7, Email: "m@example.com"}).Error)

	err := d.Deliver(context.Background(), domain.Message{ClubID: 7, MemberID: 42, Kind: domain.KindBookingConfirmed, Subject: "Booked"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")

	var count int64
	require.NoError(t, db.Model(&domain.InboxItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNotifyIsAsynchronous(t *testing.T) {
	d, db, _, _ := newTestDispatcher(t)

	d.Notify(context.Background(), domain.Message{ClubID: 7, MemberID: snowflake.ID(42), Kind: domain.KindBookingCancelled, Subject: "Cancelled"})
	d.Notify(context.Background(), domain.Message{ClubID: 7, MemberID: 0, Kind: domain.KindBookingCancelled})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	var count int64
	require.NoError(t, db.Model(&domain.InboxItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
