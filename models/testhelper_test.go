package models_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Use(config.NewBranchGuardPlugin()))
	require.NoError(t, models.Migrate(db))

	config.SetDB(db)
	models.ResetPledgeCreatedHandlers()
	t.Cleanup(func() {
		models.ResetPledgeCreatedHandlers()
		config.SetDB(nil)
		_ = sqlDB.Close()
	})
	return db
}

func testContext(branchId int) context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Tester")
	ctx = utils.SetUserRoleInContext(ctx, "M")
	ctx = utils.SetBranchIdInContext(ctx, branchId)
	return ctx
}

func seedBranch(t *testing.T, ctx context.Context, name string) *models.Branch {
	t.Helper()
	branch, err := models.CreateBranch(ctx, &models.NewBranch{Name: name})
	require.NoError(t, err)
	return branch
}

func seedCustomer(t *testing.T, ctx context.Context, name string) *models.Customer {
	t.Helper()
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: name})
	require.NoError(t, err)
	return customer
}

func seedPledge(t *testing.T, ctx context.Context, customerId int, amount string, startDate string, periodMonths int) *models.Pledge {
	t.Helper()
	pledge, err := models.CreatePledge(ctx, &models.NewPledge{
		CustomerId:         customerId,
		Amount:             decimal.RequireFromString(amount),
		InterestPercentage: decimal.NewFromInt(2),
		PeriodMonths:       periodMonths,
		StartDate:          startDate,
		Jewels: []models.NewJewel{
			{JewelType: "necklace", Quantity: 1, GrossWeight: decimal.NewFromFloat(12.5)},
		},
	})
	require.NoError(t, err)
	return pledge
}
