package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindBookingConfirmed  Kind = "booking_confirmed"
	KindBookingWaitlisted Kind = "booking_waitlisted"
	KindBookingCancelled  Kind = "booking_cancelled"
	KindSeatOffered       Kind = "seat_offered"
	KindOfferExpired      Kind = "offer_expired"
	KindCreditGranted     Kind = "credit_granted"
	KindPaymentFailed     Kind = "payment_failed"
)

// Message is a member-facing notification. Delivery is best effort.
type Message struct {
	ClubID     snowflake.ID
	MemberID   snowflake.ID
	Kind       Kind
	Subject    string
	Body       string
	SessionKey string
	Data       map[string]any
}

// InboxItem is a persisted copy of a Message shown in the member's inbox.
type InboxItem struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	ClubID    snowflake.ID      `gorm:"not null" json:"club_id"`
	MemberID  snowflake.ID      `gorm:"not null;index" json:"member_id"`
	Kind      string            `gorm:"type:text;not null" json:"kind"`
	Subject   string            `gorm:"type:text;not null" json:"subject"`
	Body      string            `gorm:"type:text;not null" json:"body"`
	Data      datatypes.JSONMap `gorm:"not null" json:"data"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
}

func (InboxItem) TableName() string { return "member_notifications" }

// Contact holds the delivery addresses of a member within a club.
type Contact struct {
	MemberID    snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	ClubID      snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Email       string       `gorm:"type:text;not null"`
	DisplayName string       `gorm:"type:text;not null"`
}

func (Contact) TableName() string { return "member_contacts" }

type InboxCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}
