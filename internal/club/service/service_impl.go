package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"github.com/smallbiznis/classbook/internal/cache"
	"github.com/smallbiznis/classbook/internal/clock"
	"github.com/smallbiznis/classbook/internal/club/domain"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Clock    clock.Clock
	Defaults *config.BookingConfigHolder
	Cache    cache.BookingLookupCache `optional:"true"`
	AuditSvc auditdomain.Service      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	clock    clock.Clock
	defaults *config.BookingConfigHolder
	cache    cache.BookingLookupCache
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("club.service"),
		repo:     p.Repo,
		clock:    p.Clock,
		defaults: p.Defaults,
		cache:    p.Cache,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) GetPolicy(ctx context.Context) (*domain.PolicyResponse, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}

	stored, err := s.repo.FindByClubID(ctx, s.db, clubID.Int64())
	if err != nil {
		return nil, err
	}
	if stored == nil {
		resp := toResponse(s.defaultPolicy(clubID), true)
		return &resp, nil
	}
	resp := toResponse(*stored, false)
	return &resp, nil
}

func (s *Service) UpsertPolicy(ctx context.Context, req domain.UpsertPolicyRequest) (*domain.PolicyResponse, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}

	policy, err := s.Resolve(ctx, clubID)
	if err != nil {
		return nil, err
	}

	if req.WaitlistEnabled != nil {
		policy.WaitlistEnabled = *req.WaitlistEnabled
	}
	if req.InPersonPaymentEnabled != nil {
		policy.InPersonPaymentEnabled = *req.InPersonPaymentEnabled
	}
	if req.CancelGraceValue != nil {
		if *req.CancelGraceValue < 0 {
			return nil, domain.ErrInvalidGraceValue
		}
		policy.CancelGraceValue = *req.CancelGraceValue
	}
	if req.CancelGraceUnit != nil {
		unit, ok := domain.ParseGraceUnit(*req.CancelGraceUnit)
		if !ok {
			return nil, domain.ErrInvalidGraceUnit
		}
		policy.CancelGraceUnit = unit
	}
	if req.OfferTTLMinutes != nil {
		if *req.OfferTTLMinutes <= 0 {
			return nil, domain.ErrInvalidOfferTTL
		}
		policy.OfferTTLMinutes = *req.OfferTTLMinutes
	}
	policy.ClubID = clubID
	policy.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Upsert(ctx, s.db, &policy); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidatePolicy(clubID.String())
	}

	if s.auditSvc != nil {
		targetID := clubID.String()
		if err := s.auditSvc.AuditLog(ctx, &clubID, "", nil, "club_policy.update", "club_policy", &targetID, map[string]any{
			"waitlist_enabled":          policy.WaitlistEnabled,
			"in_person_payment_enabled": policy.InPersonPaymentEnabled,
			"cancel_grace":              policy.Grace().String(),
			"offer_ttl_minutes":         policy.OfferTTLMinutes,
		}); err != nil {
			s.log.Warn("audit policy change failed", zap.Error(err))
		}
	}

	resp := toResponse(policy, false)
	return &resp, nil
}

func (s *Service) Resolve(ctx context.Context, clubID snowflake.ID) (domain.Policy, error) {
	if clubID == 0 {
		return domain.Policy{}, domain.ErrInvalidClub
	}
	if s.cache != nil {
		if cached, ok := s.cache.GetPolicy(clubID.String()); ok {
			return cached, nil
		}
	}

	stored, err := s.repo.FindByClubID(ctx, s.db, clubID.Int64())
	if err != nil {
		return domain.Policy{}, err
	}
	policy := s.defaultPolicy(clubID)
	if stored != nil {
		policy = *stored
		if unit, ok := domain.ParseGraceUnit(string(policy.CancelGraceUnit)); ok {
			policy.CancelGraceUnit = unit
		}
		// Defaults are hot-reloaded, so only stored rows are cached.
		if s.cache != nil {
			s.cache.SetPolicy(clubID.String(), policy)
		}
	}
	return policy, nil
}

func (s *Service) defaultPolicy(clubID snowflake.ID) domain.Policy {
	defaults := config.DefaultBookingConfig()
	if s.defaults != nil {
		defaults = s.defaults.Get()
	}
	unit, ok := domain.ParseGraceUnit(defaults.CancelGraceUnit)
	if !ok {
		unit = domain.GraceHours
	}
	return domain.Policy{
		ClubID:                 clubID,
		WaitlistEnabled:        defaults.WaitlistEnabled,
		InPersonPaymentEnabled: defaults.InPersonPayment,
		CancelGraceValue:       defaults.CancelGraceValue,
		CancelGraceUnit:        unit,
		OfferTTLMinutes:        defaults.OfferTTLMinutes,
	}
}

func toResponse(policy domain.Policy, isDefault bool) domain.PolicyResponse {
	resp := domain.PolicyResponse{
		ClubID:                 policy.ClubID.String(),
		WaitlistEnabled:        policy.WaitlistEnabled,
		InPersonPaymentEnabled: policy.InPersonPaymentEnabled,
		CancelGraceValue:       policy.CancelGraceValue,
		CancelGraceUnit:        strings.ToLower(string(policy.CancelGraceUnit)),
		OfferTTLMinutes:        policy.OfferTTLMinutes,
		IsDefault:              isDefault,
	}
	if !isDefault && !policy.UpdatedAt.IsZero() {
		updatedAt := policy.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
