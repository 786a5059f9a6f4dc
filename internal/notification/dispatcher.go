package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/config"
	"github.com/smallbiznis/classbook/internal/notification/domain"
	obscontext "github.com/smallbiznis/classbook/internal/observability/context"
	"github.com/smallbiznis/classbook/internal/providers/email"
	"github.com/smallbiznis/classbook/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	deliveryTimeout = 10 * time.Second
	maxInFlight     = 32
)

// slackKinds are mirrored to the club operations channel.
var slackKinds = map[domain.Kind]struct{}{
	domain.KindPaymentFailed: {},
	domain.KindCreditGranted: {},
}

type DispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Email     email.Provider `optional:"true"`
	Slack     slack.Provider `optional:"true"`
	Config    config.Config  `optional:"true"`
}

// Dispatcher fans a Message out to the inbox, email and slack channels in
// the background. Delivery failures are logged and never surface to callers.
type Dispatcher struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	email        email.Provider
	slack        slack.Provider
	slackChannel string

	wg  sync.WaitGroup
	sem chan struct{}
	now func() time.Time
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	d := &Dispatcher{
		db:           p.DB,
		log:          p.Log.Named("notification.dispatcher"),
		genID:        p.GenID,
		repo:         p.Repo,
		email:        p.Email,
		slack:        p.Slack,
		slackChannel: p.Config.Slack.Channel,
		sem:          make(chan struct{}, maxInFlight),
		now:          func() time.Time { return time.Now().UTC() },
	}
	if d.email == nil {
		d.email = &email.NoOpProvider{}
	}
	if d.slack == nil {
		d.slack = &slack.NoOpProvider{}
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: d.Wait,
		})
	}
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, msg domain.Message) {
	if d == nil || msg.MemberID == 0 {
		return
	}

	requestID := obscontext.RequestIDFromContext(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		deliverCtx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if requestID != "" {
			deliverCtx = obscontext.WithRequestID(deliverCtx, requestID)
		}

		if err := d.Deliver(deliverCtx, msg); err != nil {
			d.log.Warn("notification delivery incomplete",
				zap.String("kind", string(msg.Kind)),
				zap.String("member_id", msg.MemberID.String()),
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		}
	}()
}

// Deliver sends msg to every channel and joins the channel errors.
func (d *Dispatcher) Deliver(ctx context.Context, msg domain.Message) error {
	var errs []error

	data := map[string]any{}
	for k, v := range msg.Data {
		data[k] = v
	}
	if msg.SessionKey != "" {
		data["session_key"] = msg.SessionKey
	}

	item := &domain.InboxItem{
		ID:        d.genID.Generate(),
		ClubID:    msg.ClubID,
		MemberID:  msg.MemberID,
		Kind:      string(msg.Kind),
		Subject:   msg.Subject,
		Body:      msg.Body,
		Data:      datatypes.JSONMap(data),
		CreatedAt: d.now(),
	}
	if err := d.repo.InsertInbox(ctx, d.db, item); err != nil {
		errs = append(errs, fmt.Errorf("inbox: %w", err))
	}

	contact, err := d.repo.FindContact(ctx, d.db, msg.ClubID, msg.MemberID)
	if err != nil {
		errs = append(errs, fmt.Errorf("contact: %w", err))
	}
	if contact != nil && strings.TrimSpace(contact.Email) != "" {
		data["name"] = contact.DisplayName
		data["body"] = msg.Body
		data["subject"] = msg.Subject
		if err := d.email.SendTemplate(ctx, []string{contact.Email}, templateFor(msg.Kind), data); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if _, ok := slackKinds[msg.Kind]; ok {
		text := fmt.Sprintf("[%s] member %s: %s", msg.Kind, msg.MemberID, msg.Subject)
		if msg.SessionKey != "" {
			text += " (" + msg.SessionKey + ")"
		}
		if err := d.slack.PostMessage(ctx, d.slackChannel, text); err != nil {
			errs = append(errs, fmt.Errorf("slack: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func templateFor(kind domain.Kind) string {
	switch kind {
	case domain.KindSeatOffered:
		return "seat_offered"
	case domain.KindCreditGranted:
		return "credit_granted"
	}
	return "notification"
}
