package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	Increment(ctx context.Context, db *gorm.DB, memberID, clubID int64, at time.Time) error
	// Decrement takes one credit when the balance allows it.
	Decrement(ctx context.Context, db *gorm.DB, memberID, clubID int64, at time.Time) (bool, error)
	Balance(ctx context.Context, db *gorm.DB, memberID, clubID int64) (int64, error)
	ListEntries(ctx context.Context, db *gorm.DB, memberID, clubID int64, limit int) ([]Entry, error)
}
