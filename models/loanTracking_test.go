package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionLoanTrackingIsIdempotent(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Daw Mya",
		Phone: "+959790000001",
	})
	require.NoError(t, err)
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	first, err := models.ProvisionLoanTracking(ctx, pledge, pledge.Loan)
	require.NoError(t, err)
	assert.Equal(t, pledge.Loan.LoanNo, first.LoanNo)
	assert.Equal(t, customer.Phone, first.Phone)
	assert.Len(t, first.AccessCode, 8)

	second, err := models.ProvisionLoanTracking(ctx, pledge, pledge.Loan)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.AccessCode, second.AccessCode)
}

func TestTrackLoanRequiresExactMatch(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Daw Mya",
		Phone: "+959790000001",
	})
	require.NoError(t, err)
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	tracking, err := models.ProvisionLoanTracking(ctx, pledge, pledge.Loan)
	require.NoError(t, err)

	// Portal lookups come in unauthenticated.
	portalCtx := utils.SetSkipBranchScopeInContext(testContext(0), true)

	view, err := models.TrackLoan(portalCtx, tracking.LoanNo, tracking.Phone, tracking.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, tracking.LoanNo, view.LoanNo)
	assert.Equal(t, string(models.PledgeStatusActive), view.Status)
	assert.Nil(t, view.BalanceAmount)

	_, err = models.TrackLoan(portalCtx, tracking.LoanNo, tracking.Phone, "WRONGCOD")
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)

	_, err = models.TrackLoan(portalCtx, tracking.LoanNo, "+959790000999", tracking.AccessCode)
	require.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestTrackLoanShowsClosureBalance(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Daw Mya",
		Phone: "+959790000001",
	})
	require.NoError(t, err)
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	tracking, err := models.ProvisionLoanTracking(ctx, pledge, pledge.Loan)
	require.NoError(t, err)

	_, err = models.InitiateClosure(ctx, pledge.ID, &models.NewPledgeClosure{AsOfDate: "2025-03-01"})
	require.NoError(t, err)

	portalCtx := utils.SetSkipBranchScopeInContext(testContext(0), true)
	view, err := models.TrackLoan(portalCtx, tracking.LoanNo, tracking.Phone, tracking.AccessCode)
	require.NoError(t, err)
	require.NotNil(t, view.BalanceAmount)
	assert.Equal(t, "1040", *view.BalanceAmount)
	assert.Nil(t, view.ClosedAt)
}
