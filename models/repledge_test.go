package models_test

import (
	"context"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRepledge(t *testing.T, ctx context.Context, sourceName string) *models.Repledge {
	t.Helper()
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	source, err := models.CreateRepledgeSource(ctx, &models.NewRepledgeSource{Name: sourceName})
	require.NoError(t, err)

	repledge, err := models.CreateRepledge(ctx, &models.NewRepledge{
		RepledgeSourceId:   source.ID,
		LoanId:             pledge.Loan.ID,
		Amount:             decimal.NewFromInt(800),
		InterestPercentage: decimal.NewFromFloat(1.5),
		StartDate:          "2025-02-01",
		DueDate:            "2025-08-01",
	})
	require.NoError(t, err)
	return repledge
}

func TestCreateRepledgeAssignsBranchAndNumber(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")

	repledge := seedRepledge(t, ctx, "KBZ Bank")
	assert.Equal(t, fmt.Sprintf("RP-%06d", repledge.ID), repledge.ReNo)
	assert.Equal(t, 1, repledge.BranchId)
	assert.Equal(t, models.RepledgeStatusActive, repledge.Status)
}

func TestRepledgeListIsBranchScoped(t *testing.T) {
	setupTestDB(t)
	ctxA := testContext(1)
	seedBranch(t, ctxA, "Main")
	seedRepledge(t, ctxA, "KBZ Bank")

	ctxB := testContext(2)
	seedBranch(t, ctxB, "Uptown")
	seedRepledge(t, ctxB, "AYA Bank")

	fromA, err := models.GetRepledges(ctxA, nil, nil)
	require.NoError(t, err)
	require.Len(t, fromA, 1)
	assert.Equal(t, 1, fromA[0].BranchId)

	fromB, err := models.GetRepledges(ctxB, nil, nil)
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, 2, fromB[0].BranchId)

	// Admin tier sees every branch.
	adminCtx := utils.SetIsAdminInContext(ctxA, true)
	all, err := models.GetRepledges(adminCtx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCloseRepledgeIsTerminal(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	repledge := seedRepledge(t, ctx, "KBZ Bank")

	closure, err := models.CloseRepledge(ctx, repledge.ID, &models.NewRepledgeClosure{
		PrincipalPaid: decimal.NewFromInt(800),
		InterestPaid:  decimal.NewFromInt(36),
	})
	require.NoError(t, err)
	assert.True(t, closure.TotalPaid.Equal(decimal.NewFromInt(836)))

	reloaded, err := models.GetRepledge(ctx, repledge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepledgeStatusClosed, reloaded.Status)
	require.NotNil(t, reloaded.EndDate)

	_, err = models.CloseRepledge(ctx, repledge.ID, &models.NewRepledgeClosure{
		PrincipalPaid: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}
