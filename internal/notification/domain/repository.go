package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInbox(ctx context.Context, db *gorm.DB, item *InboxItem) error
	ListInbox(ctx context.Context, db *gorm.DB, clubID, memberID snowflake.ID, cursor *InboxCursor, limit int) ([]*InboxItem, error)
	MarkRead(ctx context.Context, db *gorm.DB, clubID, memberID, id snowflake.ID, at time.Time) (bool, error)
	FindContact(ctx context.Context, db *gorm.DB, clubID, memberID snowflake.ID) (*Contact, error)
}
