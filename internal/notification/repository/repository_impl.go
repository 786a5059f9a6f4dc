package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertInbox(ctx context.Context, db *gorm.DB, item *domain.InboxItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) ListInbox(ctx context.Context, db *gorm.DB, clubID, memberID snowflake.ID, cursor *domain.InboxCursor, limit int) ([]*domain.InboxItem, error) {
	query := db.WithContext(ctx).
		Model(&domain.InboxItem{}).
		Where("club_id = ? AND member_id = ?", clubID, memberID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var items []*domain.InboxItem
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, clubID, memberID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE member_notifications
		SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND club_id = ? AND member_id = ?`,
		at, id, clubID, memberID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindContact(ctx context.Context, db *gorm.DB, clubID, memberID snowflake.ID) (*domain.Contact, error) {
	var contact domain.Contact
	err := db.WithContext(ctx).
		Where("club_id = ? AND member_id = ?", clubID, memberID).
		First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}
