package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is an immutable ledger entry. There is no update or delete
// operation on purpose: corrections happen via offsetting entries. Rows are
// created only by workflow.ProcessTransaction while the money source row is
// locked.
type Transaction struct {
	ID                  int                 `gorm:"primary_key" json:"id"`
	MoneySourceId       int                 `gorm:"index;not null" json:"money_source_id"`
	MoneySource         *MoneySource        `json:"money_source,omitempty"`
	Amount              decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"amount"`
	TransactionType     TransactionType     `gorm:"size:10;not null" json:"transaction_type"`
	TransactionableType TransactionableType `gorm:"size:30" json:"transactionable_type"`
	TransactionableId   *int                `json:"transactionable_id"`
	PledgeId            *int                `gorm:"index" json:"pledge_id"`
	TransactionDate     time.Time           `gorm:"index;not null" json:"transaction_date"`
	Category            string              `gorm:"size:50" json:"category"`
	Description         string              `gorm:"size:255" json:"description"`
	BranchId            int                 `gorm:"index" json:"branch_id"`
	CreatedBy           int                 `json:"created_by"`
	CreatedByName       string              `gorm:"size:100" json:"created_by_name"`
	IdempotencyKey      *string             `gorm:"index;size:255" json:"-"`
	CreatedAt           time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type NewTransaction struct {
	Amount              decimal.Decimal     `json:"amount" binding:"required"`
	TransactionType     TransactionType     `json:"type" binding:"required,oneof=credit debit"`
	MoneySourceId       int                 `json:"money_source_id" binding:"required"`
	Date                string              `json:"date" binding:"required"`
	Description         string              `json:"description" binding:"required,max=255"`
	Category            string              `json:"category" binding:"omitempty,max=50"`
	PledgeId            *int                `json:"pledge_id"`
	TransactionableType TransactionableType `json:"transactionable_type" binding:"omitempty,oneof=capital_source"`
	TransactionableId   *int                `json:"transactionable_id"`
}

// Validate applies every precondition that does not need the money source
// lock. Rejection here guarantees zero side effects.
func (input *NewTransaction) Validate(ctx context.Context) (time.Time, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return time.Time{}, utils.NewValidationError("amount", "must be greater than zero")
	}
	if !input.TransactionType.Valid() {
		return time.Time{}, utils.NewValidationError("type", "must be credit or debit")
	}
	if !input.TransactionableType.Valid() {
		return time.Time{}, utils.NewValidationError("transactionable_type", "unknown reference kind")
	}
	if input.TransactionableType != TransactionableTypeNone {
		if input.TransactionableId == nil || *input.TransactionableId <= 0 {
			return time.Time{}, utils.NewValidationError("transactionable_id", "is required for capital_source entries")
		}
		if err := utils.ValidateResourceId[CapitalSource](ctx, *input.TransactionableId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return time.Time{}, utils.NewValidationError("transactionable_id", "capital source not found")
			}
			return time.Time{}, err
		}
	}
	if input.PledgeId != nil {
		if err := utils.ValidateResourceId[Pledge](ctx, *input.PledgeId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return time.Time{}, utils.NewValidationError("pledge_id", "pledge not found")
			}
			return time.Time{}, err
		}
	}
	date, err := utils.ParseDateString(input.Date, "")
	if err != nil {
		return time.Time{}, utils.NewValidationError("date", "must be yyyy-mm-dd")
	}
	return date, nil
}

// SignedAmount is the delta a committed entry applies to its money source.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.TransactionType == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

func GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	return utils.FetchModel[Transaction](ctx, id, "MoneySource")
}

func GetTransactions(ctx context.Context, moneySourceId *int, pledgeId *int, from *time.Time, to *time.Time) ([]*Transaction, error) {
	db := config.GetDB()
	var results []*Transaction

	dbCtx := db.WithContext(ctx).Preload("MoneySource")
	if moneySourceId != nil && *moneySourceId > 0 {
		dbCtx = dbCtx.Where("money_source_id = ?", *moneySourceId)
	}
	if pledgeId != nil && *pledgeId > 0 {
		dbCtx = dbCtx.Where("pledge_id = ?", *pledgeId)
	}
	if from != nil {
		dbCtx = dbCtx.Where("transaction_date >= ?", *from)
	}
	if to != nil {
		dbCtx = dbCtx.Where("transaction_date <= ?", *to)
	}
	if err := dbCtx.Order("transaction_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SumCreditsForPledge totals credit entries already posted against a pledge.
// Used by the closure calculator to derive the opening balance_amount.
func SumCreditsForPledge(ctx context.Context, pledgeId int) (decimal.Decimal, error) {
	return sumCreditsForPledge(config.GetDB().WithContext(ctx), pledgeId)
}

func sumCreditsForPledge(tx *gorm.DB, pledgeId int) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&Transaction{}).
		Where("pledge_id = ? AND transaction_type = ?", pledgeId, TransactionTypeCredit).
		Select("SUM(amount)").Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
