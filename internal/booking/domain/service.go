package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/smallbiznis/classbook/pkg/db/pagination"
)

type Service interface {
	ListOccurrences(ctx context.Context, classID string, req ListOccurrencesRequest) (*ListOccurrencesResponse, error)
	Book(ctx context.Context, req BookRequest) (*BookResponse, error)
	Enqueue(ctx context.Context, req EnqueueRequest) (*BookingResponse, error)
	Cancel(ctx context.Context, bookingRef string) (*BookingResponse, error)
	GetSessionSummary(ctx context.Context, classID, date string) (*SessionSummary, error)

	Get(ctx context.Context, bookingRef string) (*BookingResponse, error)
	ListMemberBookings(ctx context.Context, req ListRequest) (ListResponse, error)
	RetryPayment(ctx context.Context, bookingRef string) (*BookingResponse, error)
	HandlePaymentCallback(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

// Promoter offers freed seats to the waitlist of a session.
type Promoter interface {
	// Arm starts promotion for ref unless it is already running. It reports
	// whether a new task was started.
	Arm(ctx context.Context, ref SessionRef) bool
}

type PaymentGateway interface {
	Provider() string
	Start(ctx context.Context, req paymentdomain.StartRequest) (*paymentdomain.Session, error)
	Cancel(ctx context.Context, provider, reference string) error
	ParseCallback(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.Event, error)
}

type ListOccurrencesRequest struct {
	WindowEnd string `form:"window_end"`
}

type BookRequest struct {
	ClassID       string `json:"-"`
	Date          string `json:"-"`
	PaymentMethod string `json:"payment_method"`
}

type EnqueueRequest struct {
	ClassID string `json:"-"`
	Date    string `json:"-"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type BookingResponse struct {
	ID             string     `json:"id"`
	ClassID        string     `json:"class_id"`
	MemberID       string     `json:"member_id"`
	SessionKey     string     `json:"session_key"`
	SessionDate    string     `json:"session_date"`
	Status         string     `json:"status"`
	PaymentMethod  string     `json:"payment_method"`
	PaymentStatus  string     `json:"payment_status"`
	PaymentURL     string     `json:"payment_url,omitempty"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Queued         bool       `json:"queued"`
	OfferedAt      *time.Time `json:"offered_at,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
	OfferExpiredAt *time.Time `json:"offer_expired_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreditGranted  bool       `json:"credit_granted"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type BookResponse struct {
	Outcome Outcome          `json:"outcome"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

type OccurrenceResponse struct {
	Date           string     `json:"date"`
	SessionKey     string     `json:"session_key"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at"`
	Duration       int        `json:"duration_minutes"`
	Capacity       int        `json:"capacity"`
	PriceAmount    int64      `json:"price_amount"`
	Currency       string     `json:"currency"`
	AttendCount    int64      `json:"attend_count"`
	WaitCount      int64      `json:"wait_count"`
	RemainingSeats int64      `json:"remaining_seats"`
	MyStatus       string     `json:"my_status,omitempty"`
	MyBookingRef   string     `json:"my_booking_ref,omitempty"`
	MyOfferExpires *time.Time `json:"my_offer_expires_at,omitempty"`
}

type ListOccurrencesResponse struct {
	ClassID     string               `json:"class_id"`
	Timezone    string               `json:"timezone"`
	WindowEnd   string               `json:"window_end"`
	Occurrences []OccurrenceResponse `json:"occurrences"`
}

type SessionSummary struct {
	ClassID         string     `json:"class_id"`
	SessionKey      string     `json:"session_key"`
	Date            string     `json:"date"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	Capacity        int        `json:"capacity"`
	AttendCount     int64      `json:"attend_count"`
	WaitCount       int64      `json:"wait_count"`
	CancelCount     int64      `json:"cancel_count"`
	OfferedCount    int64      `json:"offered_count"`
	RemainingSeats  int64      `json:"remaining_seats"`
	WaitlistEnabled bool       `json:"waitlist_enabled"`
	MyStatus        string     `json:"my_status,omitempty"`
	MyBookingRef    string     `json:"my_booking_ref,omitempty"`
	MyOfferExpires  *time.Time `json:"my_offer_expires_at,omitempty"`
}

type ListResponse struct {
	pagination.PageInfo
	Bookings []BookingResponse `json:"bookings"`
}

var (
	ErrInvalidClub             = errors.New("invalid_club")
	ErrInvalidMember           = errors.New("invalid_member")
	ErrInvalidID               = errors.New("invalid_id")
	ErrInvalidDate             = errors.New("invalid_session_date")
	ErrInvalidWindow           = errors.New("invalid_window_end")
	ErrInvalidPaymentMethod    = errors.New("invalid_payment_method")
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrSessionNotFound         = errors.New("session_not_found")
	ErrBookingNotFound         = errors.New("booking_not_found")
	ErrSessionStarted          = errors.New("session_started")
	ErrWaitlistDisabled        = errors.New("waitlist_disabled")
	ErrInPersonPaymentDisabled = errors.New("in_person_payment_disabled")
	ErrSeatsAvailable          = errors.New("seats_available")
	ErrAlreadyBooked           = errors.New("already_booked")
	ErrPaymentNotRetryable     = errors.New("payment_not_retryable")
	ErrPaymentMismatch         = errors.New("payment_reference_mismatch")
)
