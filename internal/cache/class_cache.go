package cache

import (
	"strings"
	"time"

	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	clubdomain "github.com/smallbiznis/classbook/internal/club/domain"
)

const (
	defaultClassTTL  = 30 * time.Second
	defaultPolicyTTL = 15 * time.Second
)

// BookingLookupCache stores hot-path lookups for booking admission.
type BookingLookupCache interface {
	GetClass(clubID, classID string) (classdomain.ClassDefinition, bool)
	SetClass(clubID, classID string, class classdomain.ClassDefinition)
	InvalidateClass(clubID, classID string)
	GetPolicy(clubID string) (clubdomain.Policy, bool)
	SetPolicy(clubID string, policy clubdomain.Policy)
	InvalidatePolicy(clubID string)
}

type bookingLookupCache struct {
	classes   Cache[string, classdomain.ClassDefinition]
	policies  Cache[string, clubdomain.Policy]
	classTTL  time.Duration
	policyTTL time.Duration
}

// NewBookingLookupCache returns an in-memory cache tuned for booking admission.
func NewBookingLookupCache() BookingLookupCache {
	return &bookingLookupCache{
		classes:   NewTTLCache[string, classdomain.ClassDefinition](),
		policies:  NewTTLCache[string, clubdomain.Policy](),
		classTTL:  defaultClassTTL,
		policyTTL: defaultPolicyTTL,
	}
}

func (c *bookingLookupCache) GetClass(clubID, classID string) (classdomain.ClassDefinition, bool) {
	return c.classes.Get(cacheKey(clubID, classID))
}

func (c *bookingLookupCache) SetClass(clubID, classID string, class classdomain.ClassDefinition) {
	if class.ID == 0 {
		return
	}
	c.classes.Set(cacheKey(clubID, classID), class, c.classTTL)
}

func (c *bookingLookupCache) InvalidateClass(clubID, classID string) {
	c.classes.Delete(cacheKey(clubID, classID))
}

func (c *bookingLookupCache) GetPolicy(clubID string) (clubdomain.Policy, bool) {
	return c.policies.Get(cacheKey(clubID))
}

func (c *bookingLookupCache) SetPolicy(clubID string, policy clubdomain.Policy) {
	c.policies.Set(cacheKey(clubID), policy, c.policyTTL)
}

func (c *bookingLookupCache) InvalidatePolicy(clubID string) {
	c.policies.Delete(cacheKey(clubID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
