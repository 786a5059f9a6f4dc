package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetPolicy(ctx context.Context) (*PolicyResponse, error)
	UpsertPolicy(ctx context.Context, req UpsertPolicyRequest) (*PolicyResponse, error)
	// Resolve returns the effective policy of a club, falling back to defaults.
	Resolve(ctx context.Context, clubID snowflake.ID) (Policy, error)
}

type UpsertPolicyRequest struct {
	WaitlistEnabled        *bool   `json:"waitlist_enabled"`
	InPersonPaymentEnabled *bool   `json:"in_person_payment_enabled"`
	CancelGraceValue       *int    `json:"cancel_grace_value"`
	CancelGraceUnit        *string `json:"cancel_grace_unit"`
	OfferTTLMinutes        *int    `json:"offer_ttl_minutes"`
}

type PolicyResponse struct {
	ClubID                 string     `json:"club_id"`
	WaitlistEnabled        bool       `json:"waitlist_enabled"`
	InPersonPaymentEnabled bool       `json:"in_person_payment_enabled"`
	CancelGraceValue       int        `json:"cancel_grace_value"`
	CancelGraceUnit        string     `json:"cancel_grace_unit"`
	OfferTTLMinutes        int        `json:"offer_ttl_minutes"`
	IsDefault              bool       `json:"is_default"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}

var (
	ErrInvalidClub       = errors.New("invalid_club")
	ErrInvalidGraceValue = errors.New("invalid_cancel_grace_value")
	ErrInvalidGraceUnit  = errors.New("invalid_cancel_grace_unit")
	ErrInvalidOfferTTL   = errors.New("invalid_offer_ttl")
)
