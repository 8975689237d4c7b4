package auth_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/goldloan_backend/auth"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/stretchr/testify/assert"
)

func roleCtx(role string) context.Context {
	return utils.SetUserRoleInContext(context.Background(), role)
}

func TestStaffCapabilities(t *testing.T) {
	ctx := roleCtx("S")

	assert.True(t, auth.Can(ctx, auth.ActionPost, auth.ResourceTransaction))
	assert.True(t, auth.Can(ctx, auth.ActionCreate, auth.ResourcePledge))
	assert.True(t, auth.Can(ctx, auth.ActionUpdate, auth.ResourceTask))

	assert.False(t, auth.Can(ctx, auth.ActionApprove, auth.ResourcePledge))
	assert.False(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceClosure))
	assert.False(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceMoneySource))
	assert.False(t, auth.Can(ctx, auth.ActionSweep, auth.ResourcePledge))
}

func TestManagerInheritsStaff(t *testing.T) {
	ctx := roleCtx("M")

	// Manager-only capabilities.
	assert.True(t, auth.Can(ctx, auth.ActionApprove, auth.ResourcePledge))
	assert.True(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceClosure))
	assert.True(t, auth.Can(ctx, auth.ActionClose, auth.ResourceRepledge))

	// Inherited counter operations.
	assert.True(t, auth.Can(ctx, auth.ActionPost, auth.ResourceTransaction))
	assert.True(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceCustomer))

	// Still not everything.
	assert.False(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceBranch))
	assert.False(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceUser))
}

func TestAdminAllowsAll(t *testing.T) {
	ctx := roleCtx("A")
	assert.True(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceBranch))
	assert.True(t, auth.Can(ctx, auth.ActionCreate, auth.ResourceUser))
	assert.True(t, auth.Can(ctx, auth.ActionSweep, auth.ResourcePledge))
}

func TestMissingOrUnknownRoleDenied(t *testing.T) {
	assert.False(t, auth.Can(context.Background(), auth.ActionRead, auth.ResourceCustomer))
	assert.False(t, auth.Can(roleCtx("X"), auth.ActionRead, auth.ResourceCustomer))
}
