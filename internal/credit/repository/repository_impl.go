package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/credit/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_entries (id, member_id, club_id, booking_id, source_type, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.MemberID,
		entry.ClubID,
		entry.BookingID,
		entry.SourceType,
		entry.Amount,
		entry.CreatedAt,
	).Error
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, memberID, clubID int64, at time.Time) error {
	row := domain.Balance{
		MemberID:  snowflake.ID(memberID),
		ClubID:    snowflake.ID(clubID),
		Balance:   1,
		UpdatedAt: at,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}, {Name: "club_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("credit_balances.balance + 1"),
			"updated_at": at,
		}),
	}).Create(&row).Error
}

func (r *repo) Decrement(ctx context.Context, db *gorm.DB, memberID, clubID int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_balances
		 SET balance = balance - 1, updated_at = ?
		 WHERE member_id = ? AND club_id = ? AND balance >= 1`,
		at,
		memberID,
		clubID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, memberID, clubID int64) (int64, error) {
	var balance int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(balance), 0) FROM credit_balances WHERE member_id = ? AND club_id = ?`,
		memberID,
		clubID,
	).Scan(&balance).Error
	return balance, err
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, memberID, clubID int64, limit int) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_id, club_id, booking_id, source_type, amount, created_at
		 FROM credit_entries
		 WHERE member_id = ? AND club_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		memberID,
		clubID,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
