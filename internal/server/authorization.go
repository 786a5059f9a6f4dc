package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/classbook/internal/clubcontext"
)

type Actor struct {
	Role     clubcontext.Role
	ClubID   snowflake.ID
	MemberID snowflake.ID
}

func (s *Server) authorizeClubAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeClubActionWithContext(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeClubActionWithContext(ctx context.Context, object string, action string) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(ctx, actor.subject(), actor.ClubID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}

func actorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	clubID, ok := clubcontext.ClubIDFromContext(ctx)
	if !ok || clubID == 0 {
		return Actor{}, false
	}
	role := clubcontext.RoleFromContext(ctx)
	if role == clubcontext.RoleSystem {
		return Actor{Role: role, ClubID: clubID}, true
	}
	memberID, ok := clubcontext.MemberIDFromContext(ctx)
	if !ok || memberID == 0 {
		return Actor{}, false
	}
	return Actor{Role: role, ClubID: clubID, MemberID: memberID}, true
}

func (a Actor) subject() string {
	switch a.Role {
	case clubcontext.RoleSystem:
		return "system"
	case clubcontext.RoleManager:
		return fmt.Sprintf("manager:%s", a.MemberID)
	default:
		return fmt.Sprintf("member:%s", a.MemberID)
	}
}
