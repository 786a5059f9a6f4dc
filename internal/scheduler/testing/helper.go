// Package testing holds helpers that move booking state in time so
// scheduler jobs can be exercised without waiting for real deadlines.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TimeAccelerator rewrites deadlines on stored bookings.
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// LapseOffer moves the offer deadline of a booking to just before now.
func (ta *TimeAccelerator) LapseOffer(ctx context.Context, bookingID snowflake.ID, now time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET offer_expires_at = ?, updated_at = ?
		 WHERE id = ? AND queued = ?`,
		now.Add(-time.Minute),
		now,
		bookingID,
		true,
	).Error
}

// LapseAllOffers expires every outstanding offer and reports how many moved.
func (ta *TimeAccelerator) LapseAllOffers(ctx context.Context, now time.Time) (int64, error) {
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET offer_expires_at = ?, updated_at = ?
		 WHERE queued = ? AND offer_expired_at IS NULL AND offer_expires_at > ?`,
		now.Add(-time.Minute),
		now,
		true,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ShiftSession moves every booking of a session to another date.
func (ta *TimeAccelerator) ShiftSession(ctx context.Context, sessionKey string, date time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET session_date = ?, updated_at = ?
		 WHERE session_key = ?`,
		date.UTC(),
		time.Now().UTC(),
		sessionKey,
	).Error
}
