package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Delete(ctx context.Context, id string) error
	// Lookup resolves a live class for the booking engine. Soft-deleted
	// classes and classes of another club report ErrNotFound.
	Lookup(ctx context.Context, clubID, classID snowflake.ID) (*ClassDefinition, error)
}

type ListRequest struct {
	Name string `form:"name"`
	Slug string `form:"slug"`
}

// RecurrenceRequest is the wire form of a recurrence rule. Dates are
// YYYY-MM-DD and weekdays are English day names.
type RecurrenceRequest struct {
	Frequency   string   `json:"frequency"`
	Interval    int      `json:"interval"`
	Termination string   `json:"termination"`
	Until       *string  `json:"until,omitempty"`
	Count       int      `json:"count,omitempty"`
	Weekdays    []string `json:"weekdays,omitempty"`
	MonthDay    int      `json:"month_day,omitempty"`
	Ordinal     string   `json:"ordinal,omitempty"`
	OrdinalDay  string   `json:"ordinal_day,omitempty"`
}

type CreateRequest struct {
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	Description     string            `json:"description"`
	AnchorDate      string            `json:"anchor_date"`
	StartTime       string            `json:"start_time"`
	DurationMinutes int               `json:"duration_minutes"`
	Timezone        string            `json:"timezone"`
	Capacity        int               `json:"capacity"`
	PriceAmount     int64             `json:"price_amount"`
	Currency        string            `json:"currency"`
	Recurrence      RecurrenceRequest `json:"recurrence"`
	Metadata        map[string]any    `json:"metadata"`
}

type UpdateRequest struct {
	Name            *string            `json:"name"`
	Description     *string            `json:"description"`
	AnchorDate      *string            `json:"anchor_date"`
	StartTime       *string            `json:"start_time"`
	DurationMinutes *int               `json:"duration_minutes"`
	Timezone        *string            `json:"timezone"`
	Capacity        *int               `json:"capacity"`
	PriceAmount     *int64             `json:"price_amount"`
	Currency        *string            `json:"currency"`
	Recurrence      *RecurrenceRequest `json:"recurrence"`
	Metadata        map[string]any     `json:"metadata"`
}

type Response struct {
	ID              string            `json:"id"`
	ClubID          string            `json:"club_id"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	Description     string            `json:"description,omitempty"`
	AnchorDate      string            `json:"anchor_date"`
	StartTime       string            `json:"start_time"`
	DurationMinutes int               `json:"duration_minutes"`
	Timezone        string            `json:"timezone"`
	Capacity        int               `json:"capacity"`
	PriceAmount     int64             `json:"price_amount"`
	Currency        string            `json:"currency"`
	Recurrence      RecurrenceRequest `json:"recurrence"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

var (
	ErrInvalidClub       = errors.New("invalid_club")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidCapacity   = errors.New("invalid_capacity")
	ErrInvalidAnchorDate = errors.New("invalid_anchor_date")
	ErrInvalidStartTime  = errors.New("invalid_start_time")
	ErrInvalidDuration   = errors.New("invalid_duration")
	ErrInvalidTimezone   = errors.New("invalid_timezone")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrSlugTaken         = errors.New("class_slug_taken")
	ErrAnchorLocked      = errors.New("class_anchor_locked")
	ErrNotFound          = errors.New("class_not_found")
)
