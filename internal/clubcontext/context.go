package clubcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Role is the caller's role inside the active club.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleSystem  Role = "system"
)

type clubKey struct{}
type memberKey struct{}
type roleKey struct{}

// WithClubID stores the active club in the context.
func WithClubID(ctx context.Context, clubID int64) context.Context {
	return context.WithValue(ctx, clubKey{}, clubID)
}

// ClubIDFromContext returns the active club, if set.
func ClubIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, clubKey{})
}

// WithMemberID stores the acting member in the context.
func WithMemberID(ctx context.Context, memberID int64) context.Context {
	return context.WithValue(ctx, memberKey{}, memberID)
}

// MemberIDFromContext returns the acting member, if set.
func MemberIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, memberKey{})
}

func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext defaults to RoleMember when nothing was recorded.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return RoleMember
	}
	if role, ok := ctx.Value(roleKey{}).(Role); ok && role != "" {
		return role
	}
	return RoleMember
}

// ParseRole normalizes a role header value.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleMember, "":
		return RoleMember, true
	case RoleManager:
		return RoleManager, true
	default:
		return "", false
	}
}

func idFromContext(ctx context.Context, key any) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(key).(type) {
	case int64:
		if typed == 0 {
			return 0, false
		}
		return snowflake.ID(typed), true
	case snowflake.ID:
		if typed == 0 {
			return 0, false
		}
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
