package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PledgeClosure is the settlement record for a pledge payoff. balance_amount
// is monotonically non-increasing once created, floored at 0; only credit
// entries posted by workflow.ProcessTransaction decrement it.
type PledgeClosure struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	PledgeId           int             `gorm:"uniqueIndex;not null" json:"pledge_id"`
	CalculatedInterest decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"calculated_interest"`
	InterestReduction  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"interest_reduction"`
	TotalPayable       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_payable"`
	BalanceAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance_amount"`
	Status             ClosureStatus   `gorm:"size:12;default:'pending';not null" json:"status"`
	AsOfDate           time.Time       `gorm:"not null" json:"as_of_date"`
	ClosedAt           *time.Time      `json:"closed_at"`
	CreatedBy          int             `json:"created_by"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPledgeClosure struct {
	AsOfDate          string          `json:"as_of_date" binding:"required"`
	InterestReduction decimal.Decimal `json:"interest_reduction"`
}

// CalculateClosure is the closure calculator. Deterministic: the same pledge,
// timestamp and reduction always produce the same totals. The scheme is
// simple monthly interest on principal; elapsed months round up with a one
// month minimum.
func CalculateClosure(loan *Loan, asOf time.Time, interestReduction decimal.Decimal, alreadyPaid decimal.Decimal) (calculatedInterest, totalPayable, balanceAmount decimal.Decimal) {
	months := ElapsedMonths(utils.DateOnly(loan.StartDate), utils.DateOnly(asOf))
	monthlyRate := loan.InterestPercentage.Div(decimal.NewFromInt(100))
	calculatedInterest = loan.Amount.Mul(monthlyRate).Mul(decimal.NewFromInt(int64(months))).Round(4)

	totalPayable = loan.Amount.Add(calculatedInterest).Sub(interestReduction)
	if totalPayable.IsNegative() {
		totalPayable = decimal.Zero
	}

	balanceAmount = totalPayable.Sub(alreadyPaid)
	if balanceAmount.IsNegative() {
		balanceAmount = decimal.Zero
	}
	return calculatedInterest, totalPayable, balanceAmount
}

// lockForUpdate applies SELECT ... FOR UPDATE on MySQL. SQLite (tests)
// serializes writers at the database level, so the clause is unnecessary
// there and its syntax unsupported.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// InitiateClosure creates the pledge's settlement record. At most one closure
// exists per pledge. If partial payments already cover the payoff, the
// closure completes immediately with the same side effects as the ledger
// path. Everything runs in one transaction with the pledge row locked, so
// the opening balance_amount counts every committed payment exactly once:
// a posting in flight against the same pledge either commits first and is
// summed here, or waits on the pledge lock and decrements the new closure.
func InitiateClosure(ctx context.Context, pledgeId int, input *NewPledgeClosure) (*PledgeClosure, error) {
	asOf, err := utils.ParseDateString(input.AsOfDate, "")
	if err != nil {
		return nil, utils.NewValidationError("as_of_date", "must be yyyy-mm-dd")
	}
	if input.InterestReduction.IsNegative() {
		return nil, utils.NewValidationError("interest_reduction", "must not be negative")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	db := config.GetDB()

	var closure PledgeClosure
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pledge Pledge
		if err := lockForUpdate(tx).Where("id = ?", pledgeId).First(&pledge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if pledge.Status.Terminal() {
			return fmt.Errorf("pledge %s is already %s", pledge.PledgeNo, pledge.Status)
		}

		var loan Loan
		if err := tx.Where("pledge_id = ?", pledgeId).First(&loan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("pledge %s has no loan", pledge.PledgeNo)
			}
			return err
		}

		var existing PledgeClosure
		err := tx.Where("pledge_id = ?", pledgeId).First(&existing).Error
		if err == nil {
			return errors.New("closure already initiated for this pledge")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		alreadyPaid, err := sumCreditsForPledge(tx, pledgeId)
		if err != nil {
			return err
		}

		calculatedInterest, totalPayable, balanceAmount := CalculateClosure(&loan, asOf, input.InterestReduction, alreadyPaid)

		closure = PledgeClosure{
			PledgeId:           pledgeId,
			CalculatedInterest: calculatedInterest,
			InterestReduction:  input.InterestReduction,
			TotalPayable:       totalPayable,
			BalanceAmount:      balanceAmount,
			Status:             ClosureStatusPending,
			AsOfDate:           utils.DateOnly(asOf),
			CreatedBy:          userId,
		}
		if err := tx.Create(&closure).Error; err != nil {
			return err
		}
		if closure.BalanceAmount.IsZero() {
			return CompleteClosure(tx, &closure)
		}
		// An outstanding balance opens the collection work item the ledger
		// later completes on the zero crossing.
		_, err = CreatePendingBalanceTask(tx, &pledge, &loan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &closure, nil
}

// CompleteClosure finalizes a settled closure inside the caller's
// transaction: closure complete, pledge and loan closed, and the pending
// collection task (if any) completed. Idempotent on the task side.
func CompleteClosure(tx *gorm.DB, closure *PledgeClosure) error {
	now := time.Now()
	err := tx.Model(&PledgeClosure{}).Where("id = ?", closure.ID).Updates(map[string]interface{}{
		"status":         ClosureStatusComplete,
		"balance_amount": decimal.Zero,
		"closed_at":      now,
	}).Error
	if err != nil {
		return err
	}
	closure.Status = ClosureStatusComplete
	closure.BalanceAmount = decimal.Zero
	closure.ClosedAt = &now

	if err := tx.Model(&Pledge{}).Where("id = ?", closure.PledgeId).Update("status", PledgeStatusClosed).Error; err != nil {
		return err
	}
	if err := tx.Model(&Loan{}).Where("pledge_id = ?", closure.PledgeId).Update("status", PledgeStatusClosed).Error; err != nil {
		return err
	}

	// Best effort: a missing task is not an error.
	if _, err := CompletePendingBalanceTask(tx, closure.PledgeId); err != nil {
		return err
	}
	return nil
}

func GetPledgeClosure(ctx context.Context, pledgeId int) (*PledgeClosure, error) {
	db := config.GetDB()
	var closure PledgeClosure
	err := db.WithContext(ctx).Where("pledge_id = ?", pledgeId).First(&closure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &closure, nil
}
