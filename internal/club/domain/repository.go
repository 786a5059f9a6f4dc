package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByClubID(ctx context.Context, db *gorm.DB, clubID int64) (*Policy, error)
	Upsert(ctx context.Context, db *gorm.DB, policy *Policy) error
}
