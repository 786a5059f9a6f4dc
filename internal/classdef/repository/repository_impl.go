package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/classbook/internal/classdef/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, club_id, name, slug, description, anchor_date, start_time,
	duration_minutes, timezone, capacity, price_amount, currency,
	repeat_frequency, repeat_interval, repeat_termination, repeat_until, repeat_count,
	repeat_weekdays, repeat_month_day, repeat_ordinal, repeat_ordinal_day,
	metadata, deleted_at, created_at, updated_at`

func (r *repo) Create(ctx context.Context, db *gorm.DB, class *domain.ClassDefinition) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO class_definitions (
			id, club_id, name, slug, description, anchor_date, start_time,
			duration_minutes, timezone, capacity, price_amount, currency,
			repeat_frequency, repeat_interval, repeat_termination, repeat_until, repeat_count,
			repeat_weekdays, repeat_month_day, repeat_ordinal, repeat_ordinal_day,
			metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		class.ID,
		class.ClubID,
		class.Name,
		class.Slug,
		class.Description,
		class.AnchorDate,
		class.StartTime,
		class.DurationMinutes,
		class.Timezone,
		class.Capacity,
		class.PriceAmount,
		class.Currency,
		class.RepeatFrequency,
		class.RepeatInterval,
		class.RepeatTermination,
		class.RepeatUntil,
		class.RepeatCount,
		class.RepeatWeekdays,
		class.RepeatMonthDay,
		class.RepeatOrdinal,
		class.RepeatOrdinalDay,
		class.Metadata,
		class.CreatedAt,
		class.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, class *domain.ClassDefinition) error {
	return db.WithContext(ctx).Exec(
		`UPDATE class_definitions SET
			name = ?, description = ?, anchor_date = ?, start_time = ?,
			duration_minutes = ?, timezone = ?, capacity = ?, price_amount = ?, currency = ?,
			repeat_frequency = ?, repeat_interval = ?, repeat_termination = ?, repeat_until = ?,
			repeat_count = ?, repeat_weekdays = ?, repeat_month_day = ?, repeat_ordinal = ?,
			repeat_ordinal_day = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND club_id = ? AND deleted_at IS NULL`,
		class.Name,
		class.Description,
		class.AnchorDate,
		class.StartTime,
		class.DurationMinutes,
		class.Timezone,
		class.Capacity,
		class.PriceAmount,
		class.Currency,
		class.RepeatFrequency,
		class.RepeatInterval,
		class.RepeatTermination,
		class.RepeatUntil,
		class.RepeatCount,
		class.RepeatWeekdays,
		class.RepeatMonthDay,
		class.RepeatOrdinal,
		class.RepeatOrdinalDay,
		class.Metadata,
		class.UpdatedAt,
		class.ID,
		class.ClubID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, clubID, id int64) (*domain.ClassDefinition, error) {
	var class domain.ClassDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM class_definitions
		 WHERE club_id = ? AND id = ? AND deleted_at IS NULL`,
		clubID,
		id,
	).Scan(&class).Error
	if err != nil {
		return nil, err
	}
	if class.ID == 0 {
		return nil, nil
	}
	return &class, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, clubID int64, filter domain.ListFilter) ([]domain.ClassDefinition, error) {
	query := `SELECT ` + selectColumns + `
		FROM class_definitions
		WHERE club_id = ? AND deleted_at IS NULL`
	args := []any{clubID}

	if name := strings.TrimSpace(filter.Name); name != "" {
		query += " AND LOWER(name) LIKE ?"
		args = append(args, "%"+strings.ToLower(name)+"%")
	}
	if slug := strings.TrimSpace(filter.Slug); slug != "" {
		query += " AND slug = ?"
		args = append(args, slug)
	}
	query += " ORDER BY created_at ASC, id ASC"

	var items []domain.ClassDefinition
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, clubID, id int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE class_definitions
		 SET deleted_at = ?, updated_at = ?
		 WHERE club_id = ? AND id = ? AND deleted_at IS NULL`,
		at,
		at,
		clubID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) HasBookings(ctx context.Context, db *gorm.DB, classID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM bookings WHERE class_id = ?`,
		classID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
