package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Grant adds one credit for bookingID inside tx. It reports false when
	// the booking already earned its credit.
	Grant(ctx context.Context, tx *gorm.DB, memberID, clubID, bookingID snowflake.ID) (bool, error)
	// Consume spends one credit for bookingID inside tx.
	Consume(ctx context.Context, tx *gorm.DB, memberID, clubID, bookingID snowflake.ID) error
	Available(ctx context.Context, memberID, clubID snowflake.ID) (int64, error)
	GetBalance(ctx context.Context) (*BalanceResponse, error)
}

type EntryResponse struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	SourceType string    `json:"source_type"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

type BalanceResponse struct {
	MemberID string          `json:"member_id"`
	ClubID   string          `json:"club_id"`
	Balance  int64           `json:"balance"`
	Entries  []EntryResponse `json:"entries"`
}

var (
	ErrInvalidClub        = errors.New("invalid_club")
	ErrInvalidMember      = errors.New("invalid_member")
	ErrInsufficientCredit = errors.New("insufficient_credit")
)
