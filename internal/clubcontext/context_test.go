package clubcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestClubAndMemberFromContext(t *testing.T) {
	ctx := WithClubID(context.Background(), 10)
	ctx = WithMemberID(ctx, 20)

	clubID, ok := ClubIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(10), clubID)

	memberID, ok := MemberIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(20), memberID)

	_, ok = MemberIDFromContext(WithMemberID(context.Background(), 0))
	assert.False(t, ok)
}

func TestRole(t *testing.T) {
	assert.Equal(t, RoleMember, RoleFromContext(context.Background()))
	assert.Equal(t, RoleManager, RoleFromContext(WithRole(context.Background(), RoleManager)))

	role, ok := ParseRole(" Manager ")
	assert.True(t, ok)
	assert.Equal(t, RoleManager, role)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}
