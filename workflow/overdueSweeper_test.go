package workflow_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"bitbucket.org/mmdatafocus/goldloan_backend/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepFlipsOnlyPastDueActivePledges(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Hla")
	logger := newTestLogger()

	// Due 2025-02-01, well past.
	overdue := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 1)
	// Due far in the future.
	current := seedPledge(t, ctx, customer.ID, "2000", "2025-01-01", 36)
	// Past due but released before the sweep; terminal states are left alone.
	released := seedPledge(t, ctx, customer.ID, "3000", "2025-01-01", 1)
	_, err := models.ReleasePledge(ctx, released.ID)
	require.NoError(t, err)

	sweepCtx := utils.SetSkipBranchScopeInContext(ctx, true)
	today := time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)

	result, err := workflow.SweepOverduePledges(sweepCtx, logger, today)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Failed)

	check := func(id int, want models.PledgeStatus) {
		pledge, err := models.GetPledge(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, pledge.Status)
		require.NotNil(t, pledge.Loan)
		assert.Equal(t, want, pledge.Loan.Status)
	}
	check(overdue.ID, models.PledgeStatusOverdue)
	check(current.ID, models.PledgeStatusActive)

	releasedNow, err := models.GetPledge(ctx, released.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PledgeStatusReleased, releasedNow.Status)

	// Second run on the same day finds nothing left to flip.
	result, err = workflow.SweepOverduePledges(sweepCtx, logger, today)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Failed)
}

func TestSweepUsesDateOnlyCutoff(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "U Tun")
	logger := newTestLogger()

	// Due exactly today: not yet overdue.
	dueToday := seedPledge(t, ctx, customer.ID, "1000", "2025-05-01", 1)
	sweepCtx := utils.SetSkipBranchScopeInContext(ctx, true)

	onDueDay := time.Date(2025, 6, 1, 23, 59, 0, 0, time.Local)
	result, err := workflow.SweepOverduePledges(sweepCtx, logger, onDueDay)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)

	dayAfter := time.Date(2025, 6, 2, 0, 1, 0, 0, time.Local)
	result, err = workflow.SweepOverduePledges(sweepCtx, logger, dayAfter)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	pledge, err := models.GetPledge(ctx, dueToday.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PledgeStatusOverdue, pledge.Status)
}
