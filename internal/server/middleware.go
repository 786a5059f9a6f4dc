package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	obscontext "github.com/smallbiznis/classbook/internal/observability/context"
)

// Identity headers set by the upstream gateway.
const (
	HeaderClub   = "X-Club-Id"
	HeaderMember = "X-Member-Id"
	HeaderRole   = "X-Role"
)

// ClubContext resolves the caller's club, member and role from the gateway
// headers and stores them on the request context.
func ClubContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		clubID, ok := parseHeaderID(c.GetHeader(HeaderClub))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		memberID, ok := parseHeaderID(c.GetHeader(HeaderMember))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		role, ok := clubcontext.ParseRole(c.GetHeader(HeaderRole))
		if !ok {
			AbortWithError(c, newValidationError("role", "invalid_role", "invalid role"))
			return
		}

		ctx := c.Request.Context()
		ctx = clubcontext.WithClubID(ctx, int64(clubID))
		ctx = clubcontext.WithMemberID(ctx, int64(memberID))
		ctx = clubcontext.WithRole(ctx, role)
		ctx = obscontext.WithClubID(ctx, clubID.String())
		ctx = obscontext.WithActor(ctx, string(role), memberID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseHeaderID(value string) (snowflake.ID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
