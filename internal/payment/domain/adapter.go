package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_payment_config")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrInvalidAmount    = errors.New("invalid_payment_amount")
	ErrProviderFailure  = errors.New("payment_provider_failure")
)

const (
	EventTypeConfirmed = "payment_confirmed"
	EventTypeCancelled = "payment_cancelled"
	EventTypeFailed    = "payment_failed"
)

// StartRequest describes a checkout for a single booking.
type StartRequest struct {
	BookingID   snowflake.ID
	ClubID      snowflake.ID
	MemberID    snowflake.ID
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Session is the provider-side checkout created for a booking.
type Session struct {
	Provider    string
	Reference   string
	RedirectURL string
}

// Event is the canonical payment callback parsed by adapters.
type Event struct {
	Provider      string
	Reference     string
	Type          string
	BookingID     snowflake.ID
	CorrelationID string
	OccurredAt    time.Time
}

type AdapterConfig struct {
	CheckoutURL   string
	ReturnURL     string
	WebhookSecret string
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

type PaymentAdapter interface {
	Provider() string
	StartPayment(ctx context.Context, req StartRequest) (*Session, error)
	CancelPayment(ctx context.Context, reference string) error
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}
