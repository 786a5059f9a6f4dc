package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"github.com/smallbiznis/classbook/internal/cache"
	"github.com/smallbiznis/classbook/internal/classdef/domain"
	"github.com/smallbiznis/classbook/internal/clock"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"github.com/smallbiznis/classbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Cache    cache.BookingLookupCache `optional:"true"`
	AuditSvc auditdomain.Service      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	cache    cache.BookingLookupCache
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("classdef.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		cache:    p.Cache,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	classSlug := slug.Make(strings.TrimSpace(req.Slug))
	if classSlug == "" {
		classSlug = slug.Make(name)
	}
	if classSlug == "" {
		return nil, domain.ErrInvalidName
	}

	anchor, err := recurrence.ParseDate(req.AnchorDate)
	if err != nil {
		return nil, domain.ErrInvalidAnchorDate
	}
	rule, err := toRule(req.Recurrence)
	if err != nil {
		return nil, err
	}
	if err := recurrence.Validate(anchor, rule); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	class := &domain.ClassDefinition{
		ID:              s.genID.Generate(),
		ClubID:          clubID,
		Name:            name,
		Slug:            classSlug,
		Description:     strings.TrimSpace(req.Description),
		AnchorDate:      anchor,
		StartTime:       strings.TrimSpace(req.StartTime),
		DurationMinutes: req.DurationMinutes,
		Timezone:        normalizeTimezone(req.Timezone),
		Capacity:        req.Capacity,
		PriceAmount:     req.PriceAmount,
		Currency:        normalizeCurrency(req.Currency),
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	class.ApplyRule(rule)
	if req.Metadata != nil {
		class.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := validateClass(class); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, s.db, class); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.audit(ctx, class, "class.create")
	resp := toResponse(class)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Response, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}
	classID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var updated *domain.ClassDefinition
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		class, err := s.repo.FindByID(ctx, tx, clubID.Int64(), classID.Int64())
		if err != nil {
			return err
		}
		if class == nil {
			return domain.ErrNotFound
		}

		if req.AnchorDate != nil {
			anchor, err := recurrence.ParseDate(*req.AnchorDate)
			if err != nil {
				return domain.ErrInvalidAnchorDate
			}
			if !anchor.Equal(recurrence.Civil(class.AnchorDate)) {
				booked, err := s.repo.HasBookings(ctx, tx, class.ID.Int64())
				if err != nil {
					return err
				}
				if booked {
					return domain.ErrAnchorLocked
				}
				class.AnchorDate = anchor
			}
		}

		if req.Name != nil {
			class.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			class.Description = strings.TrimSpace(*req.Description)
		}
		if req.StartTime != nil {
			class.StartTime = strings.TrimSpace(*req.StartTime)
		}
		if req.DurationMinutes != nil {
			class.DurationMinutes = *req.DurationMinutes
		}
		if req.Timezone != nil {
			class.Timezone = normalizeTimezone(*req.Timezone)
		}
		if req.Capacity != nil {
			class.Capacity = *req.Capacity
		}
		if req.PriceAmount != nil {
			class.PriceAmount = *req.PriceAmount
		}
		if req.Currency != nil {
			class.Currency = normalizeCurrency(*req.Currency)
		}
		if req.Metadata != nil {
			class.Metadata = datatypes.JSONMap(req.Metadata)
		}

		rule := class.Rule()
		if req.Recurrence != nil {
			rule, err = toRule(*req.Recurrence)
			if err != nil {
				return err
			}
		}
		if err := recurrence.Validate(recurrence.Civil(class.AnchorDate), rule); err != nil {
			return err
		}
		class.ApplyRule(rule)

		if class.Name == "" {
			return domain.ErrInvalidName
		}
		if err := validateClass(class); err != nil {
			return err
		}

		class.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, class); err != nil {
			return err
		}
		updated = class
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(updated.ClubID, updated.ID)
	s.audit(ctx, updated, "class.update")
	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}
	classID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	class, err := s.Lookup(ctx, clubID, classID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(class)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return nil, domain.ErrInvalidClub
	}

	items, err := s.repo.List(ctx, s.db, clubID.Int64(), domain.ListFilter{
		Name: strings.TrimSpace(req.Name),
		Slug: strings.TrimSpace(req.Slug),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return domain.ErrInvalidClub
	}
	classID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	deleted, err := s.repo.SoftDelete(ctx, s.db, clubID.Int64(), classID.Int64(), s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.invalidate(clubID, classID)
	s.audit(ctx, &domain.ClassDefinition{ID: classID, ClubID: clubID}, "class.delete")
	return nil
}

func (s *Service) Lookup(ctx context.Context, clubID, classID snowflake.ID) (*domain.ClassDefinition, error) {
	if clubID == 0 || classID == 0 {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil {
		if cached, ok := s.cache.GetClass(clubID.String(), classID.String()); ok {
			return &cached, nil
		}
	}

	class, err := s.repo.FindByID(ctx, s.db, clubID.Int64(), classID.Int64())
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil {
		s.cache.SetClass(clubID.String(), classID.String(), *class)
	}
	return class, nil
}

func (s *Service) invalidate(clubID, classID snowflake.ID) {
	if s.cache != nil {
		s.cache.InvalidateClass(clubID.String(), classID.String())
	}
}

func (s *Service) audit(ctx context.Context, class *domain.ClassDefinition, action string) {
	if s.auditSvc == nil || class == nil {
		return
	}
	clubID := class.ClubID
	targetID := class.ID.String()
	metadata := map[string]any{}
	if class.Name != "" {
		metadata["name"] = class.Name
		metadata["capacity"] = class.Capacity
	}
	if err := s.auditSvc.AuditLog(ctx, &clubID, "", nil, action, "class", &targetID, metadata); err != nil {
		s.log.Warn("audit class change failed", zap.String("action", action), zap.Error(err))
	}
}

func validateClass(class *domain.ClassDefinition) error {
	if class.Capacity < 1 {
		return domain.ErrInvalidCapacity
	}
	if class.DurationMinutes <= 0 || class.DurationMinutes > 24*60 {
		return domain.ErrInvalidDuration
	}
	if _, _, err := domain.ParseStartTime(class.StartTime); err != nil {
		return domain.ErrInvalidStartTime
	}
	if _, err := domain.LoadTimezone(class.Timezone); err != nil {
		return err
	}
	if class.PriceAmount < 0 {
		return domain.ErrInvalidPrice
	}
	if len(class.Currency) != 3 {
		return domain.ErrInvalidCurrency
	}
	return nil
}

func toRule(req domain.RecurrenceRequest) (recurrence.Rule, error) {
	rule := recurrence.Rule{
		Frequency:   recurrence.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency))),
		Interval:    req.Interval,
		Termination: recurrence.Termination(strings.ToLower(strings.TrimSpace(req.Termination))),
		Count:       req.Count,
		MonthDay:    req.MonthDay,
		Ordinal:     recurrence.Ordinal(strings.ToLower(strings.TrimSpace(req.Ordinal))),
		OrdinalDay:  recurrence.DaySelector(strings.ToLower(strings.TrimSpace(req.OrdinalDay))),
	}
	if rule.Frequency == "" {
		rule.Frequency = recurrence.FrequencyNone
	}
	if rule.Termination == "" {
		rule.Termination = recurrence.TerminationForever
	}
	if req.Until != nil && strings.TrimSpace(*req.Until) != "" {
		until, err := recurrence.ParseDate(*req.Until)
		if err != nil {
			return recurrence.Rule{}, &recurrence.RuleError{Field: "until", Err: recurrence.ErrInvalidUntil}
		}
		rule.Until = &until
	}
	for _, name := range req.Weekdays {
		day, ok := recurrence.ParseWeekday(name)
		if !ok {
			return recurrence.Rule{}, &recurrence.RuleError{
				Field: "weekdays",
				Err:   fmt.Errorf("%w: %q", recurrence.ErrInvalidWeekdays, name),
			}
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	return rule, nil
}

func fromRule(rule recurrence.Rule) domain.RecurrenceRequest {
	out := domain.RecurrenceRequest{
		Frequency:   string(rule.Frequency),
		Interval:    rule.Interval,
		Termination: string(rule.Termination),
		Count:       rule.Count,
		MonthDay:    rule.MonthDay,
		Ordinal:     string(rule.Ordinal),
		OrdinalDay:  string(rule.OrdinalDay),
	}
	if rule.Until != nil {
		until := recurrence.FormatDate(*rule.Until)
		out.Until = &until
	}
	for _, day := range rule.Weekdays {
		out.Weekdays = append(out.Weekdays, recurrence.WeekdayName(day))
	}
	return out
}

func normalizeTimezone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "UTC"
	}
	return value
}

func normalizeCurrency(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return "USD"
	}
	return value
}

func toResponse(class *domain.ClassDefinition) domain.Response {
	resp := domain.Response{
		ID:              class.ID.String(),
		ClubID:          class.ClubID.String(),
		Name:            class.Name,
		Slug:            class.Slug,
		Description:     class.Description,
		AnchorDate:      recurrence.FormatDate(class.AnchorDate),
		StartTime:       class.StartTime,
		DurationMinutes: class.DurationMinutes,
		Timezone:        class.Timezone,
		Capacity:        class.Capacity,
		PriceAmount:     class.PriceAmount,
		Currency:        class.Currency,
		Recurrence:      fromRule(class.Rule()),
		CreatedAt:       class.CreatedAt,
		UpdatedAt:       class.UpdatedAt,
	}
	if len(class.Metadata) > 0 {
		resp.Metadata = map[string]any(class.Metadata)
	}
	return resp
}
