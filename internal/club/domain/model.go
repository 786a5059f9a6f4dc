package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type GraceUnit string

const (
	GraceMinutes GraceUnit = "minutes"
	GraceHours   GraceUnit = "hours"
	GraceDays    GraceUnit = "days"
)

// Policy holds a club's booking rules. Clubs without a stored row run on the
// configured defaults.
type Policy struct {
	ClubID                 snowflake.ID `gorm:"primaryKey;autoIncrement:false;column:club_id" json:"club_id"`
	WaitlistEnabled        bool         `gorm:"column:waitlist_enabled" json:"waitlist_enabled"`
	InPersonPaymentEnabled bool         `gorm:"column:in_person_payment_enabled" json:"in_person_payment_enabled"`
	CancelGraceValue       int          `gorm:"column:cancel_grace_value" json:"cancel_grace_value"`
	CancelGraceUnit        GraceUnit    `gorm:"column:cancel_grace_unit" json:"cancel_grace_unit"`
	OfferTTLMinutes        int          `gorm:"column:offer_ttl_minutes" json:"offer_ttl_minutes"`
	UpdatedAt              time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Policy) TableName() string { return "club_policies" }

// Grace is the cancellation window before a session starts.
func (p Policy) Grace() time.Duration {
	value := time.Duration(p.CancelGraceValue)
	switch p.CancelGraceUnit {
	case GraceMinutes:
		return value * time.Minute
	case GraceDays:
		return value * 24 * time.Hour
	default:
		return value * time.Hour
	}
}

func (p Policy) OfferTTL() time.Duration {
	return time.Duration(p.OfferTTLMinutes) * time.Minute
}

func ParseGraceUnit(value string) (GraceUnit, bool) {
	switch unit := GraceUnit(strings.ToLower(strings.TrimSpace(value))); unit {
	case GraceMinutes, GraceHours, GraceDays:
		return unit, true
	default:
		return "", false
	}
}
