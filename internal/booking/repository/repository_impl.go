package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/booking/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, club_id, class_id, member_id, session_key, session_date, status,
	payment_method, payment_status, payment_provider, payment_ref, payment_url, amount, currency,
	queued, offered_at, offer_expires_at, offer_expired_at, cancelled_at, credit_granted,
	metadata, created_at, updated_at`

// attendBelow compares the attend records of a session with a capacity.
// Offers are flags on wait records and hold no seat. The count is wrapped in
// a derived table so MySQL accepts it inside an UPDATE of the same table.
const attendBelow = `(SELECT occupancy.c FROM (
		SELECT COUNT(1) AS c FROM bookings
		WHERE session_key = ? AND status = ?
	) AS occupancy) < ?`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) LockSession(ctx context.Context, tx *gorm.DB, classID snowflake.ID, sessionKey string) error {
	switch strings.ToLower(tx.Dialector.Name()) {
	case "postgres":
		return tx.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, sessionKey).Error
	case "mysql":
		var ids []int64
		return tx.WithContext(ctx).Raw(
			`SELECT id FROM class_definitions WHERE id = ? FOR UPDATE`,
			classID,
		).Scan(&ids).Error
	default:
		// sqlite allows one writer; a no-op write takes the lock up front.
		return tx.WithContext(ctx).Exec(
			`UPDATE class_definitions SET updated_at = updated_at WHERE id = ?`,
			classID,
		).Error
	}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Create(booking).Error
}

func (r *repo) DeleteByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(`DELETE FROM bookings WHERE id IN ?`, ids).Error
}

func (r *repo) Admit(ctx context.Context, db *gorm.DB, id snowflake.ID, from domain.Status, sessionKey string, capacity int, method domain.PaymentMethod, paymentStatus domain.PaymentStatus, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings
		SET status = ?, payment_method = ?, payment_status = ?, queued = ?, updated_at = ?
		WHERE id = ? AND status = ? AND `+attendBelow,
		domain.StatusAttend, method, paymentStatus, false, now,
		id, from,
		sessionKey, domain.StatusAttend, capacity,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, id, memberID snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings
		SET status = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND member_id = ? AND status IN ?`,
		domain.StatusCancel, now, now,
		id, memberID, []domain.Status{domain.StatusAttend, domain.StatusWait},
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkCreditGranted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings SET credit_granted = ?, updated_at = ? WHERE id = ? AND credit_granted = ?`,
		true, now, id, false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.PaymentUpdate, from []domain.PaymentStatus, now time.Time) (bool, error) {
	query := `UPDATE bookings
		SET payment_status = ?, payment_provider = ?, payment_ref = ?, payment_url = ?, updated_at = ?
		WHERE id = ?`
	args := []any{update.Status, update.Provider, update.Ref, update.URL, now, id}
	if len(from) > 0 {
		query += ` AND payment_status IN ?`
		args = append(args, from)
	}
	result := db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var bookings []*domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM bookings WHERE id = ? LIMIT 1`,
		id,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return bookings[0], nil
}

func (r *repo) ListForMemberSession(ctx context.Context, db *gorm.DB, memberID snowflake.ID, sessionKey string) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM bookings
		WHERE member_id = ? AND session_key = ?
		ORDER BY created_at, id`,
		memberID, sessionKey,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) ListActiveForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID, sessionKeys []string) ([]*domain.Booking, error) {
	if len(sessionKeys) == 0 {
		return nil, nil
	}
	var bookings []*domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM bookings
		WHERE member_id = ? AND session_key IN ? AND status IN ?`,
		memberID, sessionKeys, []domain.Status{domain.StatusAttend, domain.StatusWait},
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) ListByMember(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Booking, error) {
	query := `SELECT ` + selectColumns + ` FROM bookings WHERE club_id = ? AND member_id = ?`
	args := []any{filter.ClubID, filter.MemberID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var bookings []*domain.Booking
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

const countColumns = `COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS attend,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS wait,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled,
	COALESCE(SUM(CASE WHEN status = ? AND queued = ? AND offer_expired_at IS NULL AND offer_expires_at > ? THEN 1 ELSE 0 END), 0) AS offered`

func countArgs(now time.Time) []any {
	return []any{domain.StatusAttend, domain.StatusWait, domain.StatusCancel, domain.StatusWait, true, now}
}

func (r *repo) CountSession(ctx context.Context, db *gorm.DB, sessionKey string, now time.Time) (domain.SessionCounts, error) {
	var counts []domain.SessionCounts
	args := append(countArgs(now), sessionKey)
	err := db.WithContext(ctx).Raw(
		`SELECT `+countColumns+` FROM bookings WHERE session_key = ?`,
		args...,
	).Scan(&counts).Error
	if err != nil {
		return domain.SessionCounts{}, err
	}
	result := domain.SessionCounts{SessionKey: sessionKey}
	if len(counts) > 0 {
		result.Attend = counts[0].Attend
		result.Wait = counts[0].Wait
		result.Cancelled = counts[0].Cancelled
		result.Offered = counts[0].Offered
	}
	return result, nil
}

func (r *repo) CountSessions(ctx context.Context, db *gorm.DB, sessionKeys []string, now time.Time) (map[string]domain.SessionCounts, error) {
	out := make(map[string]domain.SessionCounts, len(sessionKeys))
	if len(sessionKeys) == 0 {
		return out, nil
	}
	var counts []domain.SessionCounts
	args := append(countArgs(now), sessionKeys)
	err := db.WithContext(ctx).Raw(
		`SELECT session_key, `+countColumns+` FROM bookings
		WHERE session_key IN ?
		GROUP BY session_key`,
		args...,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		out[c.SessionKey] = c
	}
	return out, nil
}

func (r *repo) NextEligible(ctx context.Context, db *gorm.DB, sessionKey string) (*domain.Booking, error) {
	var bookings []*domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM bookings
		WHERE session_key = ? AND status = ? AND queued = ?
		ORDER BY created_at, id
		LIMIT 1`,
		sessionKey, domain.StatusWait, false,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return bookings[0], nil
}

func (r *repo) MarkOffered(ctx context.Context, db *gorm.DB, id snowflake.ID, offeredAt, expiresAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings
		SET queued = ?, offered_at = ?, offer_expires_at = ?, offer_expired_at = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND queued = ?`,
		true, offeredAt, expiresAt, offeredAt,
		id, domain.StatusWait, false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ExpireOffers(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Booking, error) {
	var candidates []*domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM bookings
		WHERE status = ? AND queued = ? AND offer_expired_at IS NULL AND offer_expires_at <= ?
		ORDER BY offer_expires_at, id
		LIMIT ?`,
		domain.StatusWait, true, now, limit,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}

	expired := make([]*domain.Booking, 0, len(candidates))
	for _, booking := range candidates {
		result := db.WithContext(ctx).Exec(
			`UPDATE bookings SET offer_expired_at = ?, updated_at = ?
			WHERE id = ? AND status = ? AND offer_expired_at IS NULL`,
			now, now, booking.ID, domain.StatusWait,
		)
		if result.Error != nil {
			return expired, fmt.Errorf("expire offer %s: %w", booking.ID, result.Error)
		}
		if result.RowsAffected == 1 {
			at := now
			booking.OfferExpiredAt = &at
			expired = append(expired, booking)
		}
	}
	return expired, nil
}

func (r *repo) ListPromotable(ctx context.Context, db *gorm.DB, today time.Time, limit int) ([]domain.SessionRef, error) {
	var refs []domain.SessionRef
	err := db.WithContext(ctx).Raw(
		`SELECT club_id, class_id, session_key, session_date
		FROM bookings
		WHERE status = ? AND queued = ? AND session_date >= ?
		GROUP BY club_id, class_id, session_key, session_date
		ORDER BY session_date, session_key
		LIMIT ?`,
		domain.StatusWait, false, today, limit,
	).Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *repo) CloseWaitlists(ctx context.Context, db *gorm.DB, before time.Time, now time.Time, limit int) (int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM bookings WHERE status = ? AND session_date < ? ORDER BY id LIMIT ?`,
		domain.StatusWait, before, limit,
	).Scan(&ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings SET status = ?, cancelled_at = ?, updated_at = ?
		WHERE id IN ? AND status = ?`,
		domain.StatusCancel, now, now, ids, domain.StatusWait,
	)
	return result.RowsAffected, result.Error
}
