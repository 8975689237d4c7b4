package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSignedAmount(t *testing.T) {
	credit := models.Transaction{Amount: decimal.NewFromInt(100), TransactionType: models.TransactionTypeCredit}
	debit := models.Transaction{Amount: decimal.NewFromInt(100), TransactionType: models.TransactionTypeDebit}

	assert.True(t, credit.SignedAmount().Equal(decimal.NewFromInt(100)))
	assert.True(t, debit.SignedAmount().Equal(decimal.NewFromInt(-100)))
}

func seedRawTransaction(t *testing.T, db *gorm.DB, moneySourceId int, pledgeId *int, txType models.TransactionType, amount int64, day int) {
	t.Helper()
	require.NoError(t, db.Create(&models.Transaction{
		MoneySourceId:   moneySourceId,
		Amount:          decimal.NewFromInt(amount),
		TransactionType: txType,
		PledgeId:        pledgeId,
		TransactionDate: date(2025, 6, day),
		Description:     "seed",
		BranchId:        1,
	}).Error)
}

func TestSumCreditsForPledge(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	customer := seedCustomer(t, ctx, "Daw Mya")
	pledge := seedPledge(t, ctx, customer.ID, "1000", "2025-01-01", 6)
	other := seedPledge(t, ctx, customer.ID, "2000", "2025-01-01", 6)
	source, err := models.CreateMoneySource(ctx, &models.NewMoneySource{
		Name: "Cash Drawer", SourceType: models.MoneySourceTypeCash,
	})
	require.NoError(t, err)

	seedRawTransaction(t, db, source.ID, &pledge.ID, models.TransactionTypeCredit, 300, 1)
	seedRawTransaction(t, db, source.ID, &pledge.ID, models.TransactionTypeCredit, 200, 2)
	// Debits and other pledges do not count.
	seedRawTransaction(t, db, source.ID, &pledge.ID, models.TransactionTypeDebit, 150, 3)
	seedRawTransaction(t, db, source.ID, &other.ID, models.TransactionTypeCredit, 999, 4)

	sum, err := models.SumCreditsForPledge(ctx, pledge.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(500)))

	// No credits at all sums to zero, not an error.
	empty := seedPledge(t, ctx, customer.ID, "3000", "2025-01-01", 6)
	sum, err = models.SumCreditsForPledge(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
}

func TestGetTransactionsFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(1)
	seedBranch(t, ctx, "Main")
	drawer, err := models.CreateMoneySource(ctx, &models.NewMoneySource{
		Name: "Cash Drawer", SourceType: models.MoneySourceTypeCash,
	})
	require.NoError(t, err)
	bank, err := models.CreateMoneySource(ctx, &models.NewMoneySource{
		Name: "KBZ Account", SourceType: models.MoneySourceTypeBank,
	})
	require.NoError(t, err)

	seedRawTransaction(t, db, drawer.ID, nil, models.TransactionTypeCredit, 100, 1)
	seedRawTransaction(t, db, drawer.ID, nil, models.TransactionTypeCredit, 200, 5)
	seedRawTransaction(t, db, bank.ID, nil, models.TransactionTypeDebit, 300, 10)

	results, err := models.GetTransactions(ctx, &drawer.ID, nil, nil, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	from := date(2025, 6, 4)
	to := date(2025, 6, 11)
	results, err = models.GetTransactions(ctx, nil, nil, &from, &to)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Newest first.
	results, err = models.GetTransactions(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, !results[0].TransactionDate.Before(results[1].TransactionDate))
}
