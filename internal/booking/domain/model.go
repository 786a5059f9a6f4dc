package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	// StatusInitial marks a row whose admission has not been decided yet. It
	// only exists inside the booking transaction.
	StatusInitial Status = "initial"
	StatusAttend  Status = "attend"
	StatusWait    Status = "wait"
	StatusCancel  Status = "cancel"
)

type PaymentMethod string

const (
	PaymentOnline   PaymentMethod = "online"
	PaymentInPerson PaymentMethod = "in_person"
	PaymentCredit   PaymentMethod = "credit"
)

func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch method := PaymentMethod(strings.ToLower(strings.TrimSpace(value))); method {
	case "":
		return PaymentOnline, true
	case PaymentOnline, PaymentInPerson, PaymentCredit:
		return method, true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentStatusNone      PaymentStatus = "none"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusWaived    PaymentStatus = "waived"
)

type Outcome string

const (
	OutcomeAttend            Outcome = "attend"
	OutcomeWaitlisted        Outcome = "waitlisted"
	OutcomeRejectedFull      Outcome = "rejected:full"
	OutcomeRejectedDuplicate Outcome = "rejected:duplicate"
)

// Booking is one member's claim on a session. The snowflake id doubles as
// the booking reference shown to members.
type Booking struct {
	ID              snowflake.ID      `gorm:"primaryKey;column:id" json:"id"`
	ClubID          snowflake.ID      `gorm:"column:club_id" json:"club_id"`
	ClassID         snowflake.ID      `gorm:"column:class_id" json:"class_id"`
	MemberID        snowflake.ID      `gorm:"column:member_id" json:"member_id"`
	SessionKey      string            `gorm:"column:session_key" json:"session_key"`
	SessionDate     time.Time         `gorm:"column:session_date;type:date" json:"session_date"`
	Status          Status            `gorm:"column:status" json:"status"`
	PaymentMethod   PaymentMethod     `gorm:"column:payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus     `gorm:"column:payment_status" json:"payment_status"`
	PaymentProvider string            `gorm:"column:payment_provider" json:"payment_provider"`
	PaymentRef      string            `gorm:"column:payment_ref" json:"payment_ref"`
	PaymentURL      string            `gorm:"column:payment_url" json:"payment_url"`
	Amount          int64             `gorm:"column:amount" json:"amount"`
	Currency        string            `gorm:"column:currency" json:"currency"`
	Queued          bool              `gorm:"column:queued" json:"queued"`
	OfferedAt       *time.Time        `gorm:"column:offered_at" json:"offered_at,omitempty"`
	OfferExpiresAt  *time.Time        `gorm:"column:offer_expires_at" json:"offer_expires_at,omitempty"`
	OfferExpiredAt  *time.Time        `gorm:"column:offer_expired_at" json:"offer_expired_at,omitempty"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreditGranted   bool              `gorm:"column:credit_granted" json:"credit_granted"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	CreatedAt       time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

func (b Booking) Active() bool {
	return b.Status == StatusAttend || b.Status == StatusWait
}

// OfferOutstanding reports whether b holds a promotion offer that has not
// lapsed at now.
func (b Booking) OfferOutstanding(now time.Time) bool {
	return b.Status == StatusWait && b.Queued && b.OfferExpiredAt == nil &&
		b.OfferExpiresAt != nil && b.OfferExpiresAt.After(now)
}

// SessionCounts is the occupancy of one session at a point in time.
type SessionCounts struct {
	SessionKey string `gorm:"column:session_key"`
	Attend     int64  `gorm:"column:attend"`
	Wait       int64  `gorm:"column:wait"`
	Cancelled  int64  `gorm:"column:cancelled"`
	// Offered is the number of outstanding promotion offers. They pace the
	// promoter only; a seat is taken by an attend record alone.
	Offered    int64  `gorm:"column:offered"`
}

func (c SessionCounts) Remaining(capacity int) int64 {
	remaining := int64(capacity) - c.Attend
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SessionRef addresses a session for background work.
type SessionRef struct {
	ClubID      snowflake.ID `gorm:"column:club_id"`
	ClassID     snowflake.ID `gorm:"column:class_id"`
	SessionKey  string       `gorm:"column:session_key"`
	SessionDate time.Time    `gorm:"column:session_date"`
}

type BookingCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type ListFilter struct {
	ClubID   snowflake.ID
	MemberID snowflake.ID
	Status   Status
	Cursor   *BookingCursor
	Limit    int
}

// PaymentUpdate moves the payment columns of a booking.
type PaymentUpdate struct {
	Status   PaymentStatus
	Provider string
	Ref      string
	URL      string
}
