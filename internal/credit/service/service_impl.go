package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/classbook/internal/clock"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/credit/domain"
	"github.com/smallbiznis/classbook/internal/observability/metrics"
	"github.com/smallbiznis/classbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentEntries = 20

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credit.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Grant(ctx context.Context, tx *gorm.DB, memberID, clubID, bookingID snowflake.ID) (bool, error) {
	if memberID == 0 {
		return false, domain.ErrInvalidMember
	}
	if clubID == 0 {
		return false, domain.ErrInvalidClub
	}

	now := s.clock.Now().UTC()
	entry := &domain.Entry{
		ID:         s.genID.Generate(),
		MemberID:   memberID,
		ClubID:     clubID,
		BookingID:  bookingID,
		SourceType: domain.SourceGrant,
		Amount:     1,
		CreatedAt:  now,
	}
	// The entry is written first; its unique (booking_id, source_type) key
	// keeps a retried cancellation from granting twice.
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	if err := s.repo.Increment(ctx, tx, memberID.Int64(), clubID.Int64(), now); err != nil {
		return false, err
	}

	s.metrics.RecordCreditEntry(ctx, string(domain.SourceGrant))
	s.log.Info("credit granted",
		zap.String("member_id", memberID.String()),
		zap.String("club_id", clubID.String()),
		zap.String("booking_id", bookingID.String()),
	)
	return true, nil
}

func (s *Service) Consume(ctx context.Context, tx *gorm.DB, memberID, clubID, bookingID snowflake.ID) error {
	if memberID == 0 {
		return domain.ErrInvalidMember
	}
	if clubID == 0 {
		return domain.ErrInvalidClub
	}

	now := s.clock.Now().UTC()
	ok, err := s.repo.Decrement(ctx, tx, memberID.Int64(), clubID.Int64(), now)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientCredit
	}

	entry := &domain.Entry{
		ID:         s.genID.Generate(),
		MemberID:   memberID,
		ClubID:     clubID,
		BookingID:  bookingID,
		SourceType: domain.SourceUse,
		Amount:     -1,
		CreatedAt:  now,
	}
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		return err
	}

	s.metrics.RecordCreditEntry(ctx, string(domain.SourceUse))
	return nil
}

func (s *Service) Available(ctx context.Context, memberID, clubID snowflake.ID) (int64, error) {
	return s.repo.Balance(ctx, s.db, memberID.Int64(), clubID.Int64())
}

func (s *Service) GetBalance(ctx context.Context) (*domain.BalanceResponse, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}
	memberID, ok := clubcontext.MemberIDFromContext(ctx)
	if !ok || memberID == 0 {
		return nil, domain.ErrInvalidMember
	}

	balance, err := s.repo.Balance(ctx, s.db, memberID.Int64(), clubID.Int64())
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, s.db, memberID.Int64(), clubID.Int64(), recentEntries)
	if err != nil {
		return nil, err
	}

	resp := &domain.BalanceResponse{
		MemberID: memberID.String(),
		ClubID:   clubID.String(),
		Balance:  balance,
		Entries:  make([]domain.EntryResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, domain.EntryResponse{
			ID:         entry.ID.String(),
			BookingID:  entry.BookingID.String(),
			SourceType: string(entry.SourceType),
			Amount:     entry.Amount,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp, nil
}
