package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestElapsedMonths(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		asOf time.Time
		want int
	}{
		{"same day", date(2025, 1, 15), date(2025, 1, 15), 1},
		{"within first month", date(2025, 1, 15), date(2025, 2, 10), 1},
		{"exactly one month", date(2025, 1, 15), date(2025, 2, 15), 1},
		{"one day past anniversary", date(2025, 1, 15), date(2025, 2, 16), 2},
		{"two full months", date(2025, 1, 15), date(2025, 3, 15), 2},
		{"across year boundary", date(2024, 11, 10), date(2025, 2, 11), 4},
		{"asOf before start", date(2025, 5, 1), date(2025, 4, 1), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, models.ElapsedMonths(tc.from, tc.asOf))
		})
	}
}

func TestCalculateClosureIsDeterministicAndFloored(t *testing.T) {
	loan := &models.Loan{
		Amount:             decimal.NewFromInt(1000),
		InterestPercentage: decimal.NewFromInt(2),
		StartDate:          date(2025, 1, 1),
	}
	asOf := date(2025, 3, 1)

	interest1, total1, balance1 := models.CalculateClosure(loan, asOf, decimal.Zero, decimal.Zero)
	interest2, total2, balance2 := models.CalculateClosure(loan, asOf, decimal.Zero, decimal.Zero)
	assert.True(t, interest1.Equal(interest2))
	assert.True(t, total1.Equal(total2))
	assert.True(t, balance1.Equal(balance2))

	assert.True(t, interest1.Equal(decimal.NewFromInt(40)))
	assert.True(t, total1.Equal(decimal.NewFromInt(1040)))

	// Payments beyond the payoff floor the balance at 0 rather than going
	// negative.
	_, _, balance := models.CalculateClosure(loan, asOf, decimal.Zero, decimal.NewFromInt(5000))
	assert.True(t, balance.IsZero())

	// A reduction larger than the payoff floors total_payable too.
	_, total, _ := models.CalculateClosure(loan, asOf, decimal.NewFromInt(9999), decimal.Zero)
	assert.True(t, total.IsZero())
}

func TestInitiateClosureRejectsDuplicates(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	_, err := models.InitiateClosure(ctx, pledge.ID, &models.NewPledgeClosure{AsOfDate: "2025-03-01"})
	require.NoError(t, err)

	_, err = models.InitiateClosure(ctx, pledge.ID, &models.NewPledgeClosure{AsOfDate: "2025-03-02"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initiated")
}

func TestInitiateClosureRejectsTerminalPledge(t *testing.T) {
	setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	_, err := models.CancelPledge(ctx, pledge.ID)
	require.NoError(t, err)

	_, err = models.InitiateClosure(ctx, pledge.ID, &models.NewPledgeClosure{AsOfDate: "2025-03-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestInitiateClosureOpensCollectionTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)

	_, err := models.InitiateClosure(ctx, pledge.ID, &models.NewPledgeClosure{AsOfDate: "2025-03-01"})
	require.NoError(t, err)

	var task models.Task
	require.NoError(t, db.Where("pledge_id = ?", pledge.ID).First(&task).Error)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	require.NotNil(t, task.LoanId)
	assert.Equal(t, "Pending Balance: "+pledge.Loan.LoanNo, task.Title)
}
