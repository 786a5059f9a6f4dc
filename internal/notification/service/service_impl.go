package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/notification/domain"
	"github.com/smallbiznis/classbook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("notification.service"),
		repo: p.Repo,
	}
}

func (s *Service) ListInbox(ctx context.Context, req domain.ListInboxRequest) (domain.ListInboxResponse, error) {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return domain.ListInboxResponse{}, err
	}

	decoded, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListInboxResponse{}, pagination.ErrInvalidPageToken
	}
	var cursor *domain.InboxCursor
	if decoded != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListInboxResponse{}, pagination.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListInboxResponse{}, pagination.ErrInvalidPageToken
		}
		cursor = &domain.InboxCursor{CreatedAt: createdAt, ID: id}
	}

	limit := req.Limit()
	items, err := s.repo.ListInbox(ctx, s.db, clubID, memberID, cursor, limit+1)
	if err != nil {
		return domain.ListInboxResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *domain.InboxItem) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})

	resp := domain.ListInboxResponse{Notifications: make([]domain.InboxResponse, 0, len(items))}
	for _, item := range items {
		resp.Notifications = append(resp.Notifications, domain.InboxResponse{
			ID:        item.ID.String(),
			Kind:      item.Kind,
			Subject:   item.Subject,
			Body:      item.Body,
			Data:      map[string]any(item.Data),
			ReadAt:    item.ReadAt,
			CreatedAt: item.CreatedAt,
		})
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	clubID, memberID, err := actor(ctx)
	if err != nil {
		return err
	}
	notificationID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || notificationID == 0 {
		return domain.ErrInvalidID
	}

	updated, err := s.repo.MarkRead(ctx, s.db, clubID, memberID, notificationID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotificationMissing
	}
	return nil
}

func actor(ctx context.Context) (snowflake.ID, snowflake.ID, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return 0, 0, domain.ErrInvalidClub
	}
	memberID, ok := clubcontext.MemberIDFromContext(ctx)
	if !ok || memberID == 0 {
		return 0, 0, domain.ErrInvalidMember
	}
	return clubID, memberID, nil
}
