package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// LockSession serialises writers of one session until tx ends.
	LockSession(ctx context.Context, tx *gorm.DB, classID snowflake.ID, sessionKey string) error
	Insert(ctx context.Context, db *gorm.DB, booking *Booking) error
	DeleteByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
	// Admit moves a record from status from to attend when the session still
	// has fewer attend records than capacity.
	Admit(ctx context.Context, db *gorm.DB, id snowflake.ID, from Status, sessionKey string, capacity int, method PaymentMethod, paymentStatus PaymentStatus, now time.Time) (bool, error)
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, id, memberID snowflake.ID, now time.Time) (bool, error)
	MarkCreditGranted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, update PaymentUpdate, from []PaymentStatus, now time.Time) (bool, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	ListForMemberSession(ctx context.Context, db *gorm.DB, memberID snowflake.ID, sessionKey string) ([]*Booking, error)
	ListActiveForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID, sessionKeys []string) ([]*Booking, error)
	ListByMember(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Booking, error)
	CountSession(ctx context.Context, db *gorm.DB, sessionKey string, now time.Time) (SessionCounts, error)
	CountSessions(ctx context.Context, db *gorm.DB, sessionKeys []string, now time.Time) (map[string]SessionCounts, error)

	// NextEligible returns the oldest waitlisted record without an offer.
	NextEligible(ctx context.Context, db *gorm.DB, sessionKey string) (*Booking, error)
	MarkOffered(ctx context.Context, db *gorm.DB, id snowflake.ID, offeredAt, expiresAt time.Time) (bool, error)
	ExpireOffers(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Booking, error)
	ListPromotable(ctx context.Context, db *gorm.DB, today time.Time, limit int) ([]SessionRef, error)
	CloseWaitlists(ctx context.Context, db *gorm.DB, before time.Time, now time.Time, limit int) (int64, error)
}
