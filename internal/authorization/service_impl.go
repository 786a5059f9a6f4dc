package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectClass        = "class"
	ObjectSession      = "session"
	ObjectBooking      = "booking"
	ObjectWaitlist     = "waitlist"
	ObjectCredit       = "credit"
	ObjectClubPolicy   = "club_policy"
	ObjectNotification = "notification"
	ObjectAuditLog     = "audit_log"
	ObjectPayment      = "payment"
)

const (
	ActionClassView   = "class.view"
	ActionClassCreate = "class.create"
	ActionClassUpdate = "class.update"
	ActionClassDelete = "class.delete"

	ActionSessionView = "session.view"

	ActionBookingCreate = "booking.create"
	ActionBookingCancel = "booking.cancel"
	ActionBookingView   = "booking.view"

	ActionWaitlistJoin = "waitlist.join"

	ActionCreditView = "credit.view"

	ActionClubPolicyView   = "club_policy.view"
	ActionClubPolicyManage = "club_policy.manage"

	ActionNotificationView = "notification.view"

	ActionAuditLogView = "audit_log.view"

	ActionPaymentRetry    = "payment.retry"
	ActionPaymentCallback = "payment.callback"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

// Authorize checks actor against the club's role bindings. Actors are
// "system", "member:<id>" or "manager:<id>"; the role is carried by the
// gateway, so the binding is refreshed on every call.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, clubID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	clubID = strings.TrimSpace(clubID)
	if clubID == "" {
		return ErrInvalidClub
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := resolveActor(actor)
	if err != nil {
		return err
	}
	if parsed, err := snowflake.ParseString(clubID); err != nil || parsed == 0 {
		return ErrInvalidClub
	}

	domain := fmt.Sprintf("club:%s", clubID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("club_id", clubID),
			zap.String("action", action),
		)
		s.audit(ctx, "authorization.denied", actorType, actorID, clubID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.audit(ctx, "authorization.granted", actorType, actorID, clubID, object, action)
	}
	return nil
}

func resolveActor(actor string) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}

	kind, rawID, ok := strings.Cut(actor, ":")
	if !ok {
		return "", "", "", nil, ErrInvalidActor
	}
	switch kind {
	case "member", "manager":
	default:
		return "", "", "", nil, ErrInvalidActor
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return "", "", "", nil, ErrInvalidActor
	}
	idStr := id.String()
	// The subject is keyed by member id so a role change re-binds the same subject.
	return "member:" + idStr, "role:" + kind, kind, &idStr, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, event string, actorType string, actorID *string, clubID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedClubID, err := snowflake.ParseString(clubID)
	if err != nil || parsedClubID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedClubID, actorType, actorID, event, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
	})
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionClassDelete, ActionClubPolicyManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	member := [][]string{
		{ObjectClass, ActionClassView},
		{ObjectSession, ActionSessionView},
		{ObjectBooking, ActionBookingCreate},
		{ObjectBooking, ActionBookingCancel},
		{ObjectBooking, ActionBookingView},
		{ObjectWaitlist, ActionWaitlistJoin},
		{ObjectCredit, ActionCreditView},
		{ObjectClubPolicy, ActionClubPolicyView},
		{ObjectNotification, ActionNotificationView},
		{ObjectPayment, ActionPaymentRetry},
	}
	manager := [][]string{
		{ObjectClass, ActionClassCreate},
		{ObjectClass, ActionClassUpdate},
		{ObjectClass, ActionClassDelete},
		{ObjectClubPolicy, ActionClubPolicyManage},
		{ObjectAuditLog, ActionAuditLogView},
	}
	system := [][]string{
		{ObjectPayment, ActionPaymentCallback},
		{ObjectSession, ActionSessionView},
		{ObjectClass, ActionClassView},
	}

	policies := make([][]string, 0, 2*len(member)+len(manager)+len(system))
	for _, rule := range member {
		policies = append(policies, []string{"role:member", rule[0], rule[1]})
		// Managers are members too.
		policies = append(policies, []string{"role:manager", rule[0], rule[1]})
	}
	for _, rule := range manager {
		policies = append(policies, []string{"role:manager", rule[0], rule[1]})
	}
	for _, rule := range system {
		policies = append(policies, []string{"role:system", rule[0], rule[1]})
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
