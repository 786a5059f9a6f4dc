package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	Name string
	Slug string
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, class *ClassDefinition) error
	Update(ctx context.Context, db *gorm.DB, class *ClassDefinition) error
	FindByID(ctx context.Context, db *gorm.DB, clubID, id int64) (*ClassDefinition, error)
	List(ctx context.Context, db *gorm.DB, clubID int64, filter ListFilter) ([]ClassDefinition, error)
	SoftDelete(ctx context.Context, db *gorm.DB, clubID, id int64, at time.Time) (bool, error)
	HasBookings(ctx context.Context, db *gorm.DB, classID int64) (bool, error)
}
