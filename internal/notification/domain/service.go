package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/classbook/pkg/db/pagination"
)

var (
	ErrInvalidClub         = errors.New("invalid_club")
	ErrInvalidMember       = errors.New("invalid_member")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotificationMissing = errors.New("notification_not_found")
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_notifier.go -package=mocks
type Notifier interface {
	// Notify hands msg to the delivery channels and returns immediately.
	Notify(ctx context.Context, msg Message)
}

type Service interface {
	ListInbox(ctx context.Context, req ListInboxRequest) (ListInboxResponse, error)
	MarkRead(ctx context.Context, id string) error
}

type ListInboxRequest struct {
	pagination.Pagination
}

type InboxResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ListInboxResponse struct {
	pagination.PageInfo
	Notifications []InboxResponse `json:"notifications"`
}
