package models_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePledgeIntake(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")

	var events []models.PledgeCreatedEvent
	models.OnPledgeCreated(func(ctx context.Context, ev models.PledgeCreatedEvent) {
		events = append(events, ev)
	})

	pledge, err := models.CreatePledge(ctx, &models.NewPledge{
		CustomerId:         customer.ID,
		Amount:             decimal.NewFromInt(1500),
		InterestPercentage: decimal.NewFromFloat(2.5),
		PeriodMonths:       6,
		StartDate:          "2025-01-15",
		Jewels: []models.NewJewel{
			{JewelType: "ring", Quantity: 2, GrossWeight: decimal.NewFromFloat(3.2)},
			{JewelType: "chain", Quantity: 1, GrossWeight: decimal.NewFromFloat(8.1)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("PLG-%06d", pledge.ID), pledge.PledgeNo)
	assert.Equal(t, models.PledgeStatusActive, pledge.Status)
	assert.Equal(t, models.ApprovalStatusPending, pledge.ApprovalStatus)
	assert.Equal(t, 1, pledge.BranchId)

	require.NotNil(t, pledge.Loan)
	assert.Equal(t, fmt.Sprintf("L-%d", pledge.ID), pledge.Loan.LoanNo)
	assert.Equal(t, date(2025, 7, 15), pledge.Loan.DueDate)
	assert.Len(t, pledge.Jewels, 2)

	require.Len(t, events, 1)
	assert.Equal(t, pledge.ID, events[0].Pledge.ID)
	require.NotNil(t, events[0].Loan)
}

func TestCreatePledgeUnknownCustomer(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")

	_, err := models.CreatePledge(ctx, &models.NewPledge{
		CustomerId:         9999,
		Amount:             decimal.NewFromInt(1500),
		InterestPercentage: decimal.NewFromInt(2),
		StartDate:          "2025-01-15",
		Jewels:             []models.NewJewel{{JewelType: "ring", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer not found")
}

func TestTransitionPledgeMonotonicity(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	released, err := models.ReleasePledge(ctx, pledge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PledgeStatusReleased, released.Status)

	// Terminal states accept no further transitions.
	_, err = models.CancelPledge(ctx, pledge.ID)
	require.Error(t, err)
	_, err = models.MarkPledgeDefault(ctx, pledge.ID)
	require.Error(t, err)

	// Status mirrors onto the loan.
	reloaded, err := models.GetPledge(ctx, pledge.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Loan)
	assert.Equal(t, models.PledgeStatusReleased, reloaded.Loan.Status)
}

func TestConcurrentTransitionsOnlyOneWins(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	for _, transition := range []func(context.Context, int) (*models.Pledge, error){
		models.ReleasePledge, models.CancelPledge,
	} {
		wg.Add(1)
		go func(transition func(context.Context, int) (*models.Pledge, error)) {
			defer wg.Done()
			_, err := transition(ctx, pledge.ID)
			errCh <- err
		}(transition)
	}
	wg.Wait()
	close(errCh)

	var failures int
	for err := range errCh {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	reloaded, err := models.GetPledge(ctx, pledge.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Status.Terminal())
	require.NotNil(t, reloaded.Loan)
	assert.Equal(t, reloaded.Status, reloaded.Loan.Status)
}

func TestPledgeStatusCanTransition(t *testing.T) {
	assert.True(t, models.PledgeStatusActive.CanTransition(models.PledgeStatusOverdue))
	assert.True(t, models.PledgeStatusOverdue.CanTransition(models.PledgeStatusDefault))
	assert.True(t, models.PledgeStatusDefault.CanTransition(models.PledgeStatusClosed))

	// Released/cancelled are reachable only from active.
	assert.False(t, models.PledgeStatusOverdue.CanTransition(models.PledgeStatusReleased))
	assert.False(t, models.PledgeStatusOverdue.CanTransition(models.PledgeStatusCancelled))

	// Nothing leaves a terminal state, and nothing moves backwards.
	for _, terminal := range []models.PledgeStatus{
		models.PledgeStatusReleased, models.PledgeStatusCancelled, models.PledgeStatusClosed,
	} {
		assert.True(t, terminal.Terminal())
		assert.False(t, terminal.CanTransition(models.PledgeStatusActive))
		assert.False(t, terminal.CanTransition(models.PledgeStatusOverdue))
	}
	assert.False(t, models.PledgeStatusOverdue.CanTransition(models.PledgeStatusActive))
}
