package repository

import (
	"context"

	"github.com/smallbiznis/classbook/internal/club/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByClubID(ctx context.Context, db *gorm.DB, clubID int64) (*domain.Policy, error) {
	var policy domain.Policy
	err := db.WithContext(ctx).Raw(
		`SELECT club_id, waitlist_enabled, in_person_payment_enabled,
			cancel_grace_value, cancel_grace_unit, offer_ttl_minutes, updated_at
		 FROM club_policies
		 WHERE club_id = ?`,
		clubID,
	).Scan(&policy).Error
	if err != nil {
		return nil, err
	}
	if policy.ClubID == 0 {
		return nil, nil
	}
	return &policy, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, policy *domain.Policy) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "club_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"waitlist_enabled",
			"in_person_payment_enabled",
			"cancel_grace_value",
			"cancel_grace_unit",
			"offer_ttl_minutes",
			"updated_at",
		}),
	}).Create(policy).Error
}
