package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SourceType string

const (
	SourceGrant SourceType = "credit_grant"
	SourceUse   SourceType = "credit_use"
)

type Balance struct {
	MemberID  snowflake.ID `gorm:"primaryKey;autoIncrement:false;column:member_id"`
	ClubID    snowflake.ID `gorm:"primaryKey;autoIncrement:false;column:club_id"`
	Balance   int64        `gorm:"column:balance"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`
}

func (Balance) TableName() string { return "credit_balances" }

// Entry is one append-only movement on a member's balance.
type Entry struct {
	ID         snowflake.ID `gorm:"primaryKey;column:id"`
	MemberID   snowflake.ID `gorm:"column:member_id"`
	ClubID     snowflake.ID `gorm:"column:club_id"`
	BookingID  snowflake.ID `gorm:"column:booking_id"`
	SourceType SourceType   `gorm:"column:source_type"`
	Amount     int64        `gorm:"column:amount"`
	CreatedAt  time.Time    `gorm:"column:created_at"`
}

func (Entry) TableName() string { return "credit_entries" }
