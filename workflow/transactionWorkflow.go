package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("goldloan-backend")

// TransactionHandlerName scopes idempotency keys for ledger posting.
const TransactionHandlerName = "ledger.post_transaction"

type PostingResult struct {
	Transaction *models.Transaction `json:"transaction"`
	NewBalance  decimal.Decimal     `json:"new_balance"`
	// Replayed is true when an Idempotency-Key matched an earlier posting
	// and no new entry was written.
	Replayed bool `json:"-"`
}

// ProcessTransaction atomically records a monetary movement and applies all
// downstream balance effects:
//
//  1. lock the money source row
//  2. create the immutable ledger entry
//  3. apply the signed delta to the locked balance
//  4. if tied to a pledge: lock its closure; a credit decrements
//     balance_amount, clamped at 0
//  5. on reaching 0: complete the closure (pledge/loan closed, pending
//     collection task completed, best effort)
//
// Any failure rolls the whole unit back: no entry, no balance change, no
// closure decrement survives a partial failure.
//
// Policy notes, pinned by tests:
//   - money source balances MAY go negative on debit; no floor is enforced
//   - a debit tied to a pledge does NOT re-inflate the closure balance
func ProcessTransaction(ctx context.Context, logger *logrus.Logger, input *models.NewTransaction, idempotencyKey string) (*PostingResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.post_transaction")
	defer span.End()
	span.SetAttributes(attribute.Int("money_source_id", input.MoneySourceId))

	// Rejection before this point guarantees zero side effects.
	date, err := input.Validate(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	branchId, _ := utils.GetBranchIdFromContext(ctx)

	var result PostingResult

	if idempotencyKey != "" {
		// STARTED is written durably before the posting transaction opens:
		// a rollback must still leave the key row for the FAILED update.
		skip, err := BeginIdempotency(db.WithContext(ctx), TransactionHandlerName, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if skip {
			if err := loadReplayedPosting(db.WithContext(ctx), idempotencyKey, &result); err != nil {
				return nil, err
			}
			return &result, nil
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock is the serialization point: concurrent postings
		// against the same money source queue here.
		var source models.MoneySource
		err := lockForUpdate(tx).Where("id = ?", input.MoneySourceId).First(&source).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		txn := models.Transaction{
			MoneySourceId:       source.ID,
			Amount:              input.Amount,
			TransactionType:     input.TransactionType,
			TransactionableType: input.TransactionableType,
			TransactionableId:   input.TransactionableId,
			PledgeId:            input.PledgeId,
			TransactionDate:     date,
			Category:            input.Category,
			Description:         input.Description,
			BranchId:            branchId,
			CreatedBy:           userId,
			CreatedByName:       userName,
		}
		if idempotencyKey != "" {
			txn.IdempotencyKey = &idempotencyKey
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		newBalance := source.Balance.Add(txn.SignedAmount())
		if err := tx.Model(&models.MoneySource{}).Where("id = ?", source.ID).
			Update("balance", newBalance).Error; err != nil {
			return err
		}
		source.Balance = newBalance

		if input.PledgeId != nil {
			if err := applyClosurePayment(tx, logger, *input.PledgeId, &txn); err != nil {
				return err
			}
		}

		if idempotencyKey != "" {
			if err := MarkIdempotencySucceeded(tx, TransactionHandlerName, idempotencyKey); err != nil {
				return err
			}
		}

		txn.MoneySource = &source
		result.Transaction = &txn
		result.NewBalance = newBalance
		return nil
	})
	if err != nil {
		if idempotencyKey != "" {
			// The posting transaction rolled back; the durable STARTED row
			// takes the FAILED status in its own write.
			if merr := MarkIdempotencyFailed(db.WithContext(ctx), TransactionHandlerName, idempotencyKey, err); merr != nil {
				config.LogError(logger, "transactionWorkflow.go", "ProcessTransaction", "MarkIdempotencyFailed", idempotencyKey, merr)
			}
		}
		return nil, mapLockError(err)
	}
	return &result, nil
}

// applyClosurePayment runs step 4/5 of the posting protocol. The pledge row
// is locked first to serialize with closure initiation, which sums committed
// payments under the same lock; the closure row is locked as well because
// two money sources crediting the same pledge must not race on
// balance_amount.
func applyClosurePayment(tx *gorm.DB, logger *logrus.Logger, pledgeId int, txn *models.Transaction) error {
	var pledge models.Pledge
	if err := lockForUpdate(tx).Where("id = ?", pledgeId).First(&pledge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	var closure models.PledgeClosure
	err := lockForUpdate(tx).Where("pledge_id = ?", pledgeId).First(&closure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No closure initiated yet; the payment is an ordinary ledger
			// entry against the pledge.
			return nil
		}
		return err
	}

	if txn.TransactionType != models.TransactionTypeCredit {
		// Refunds/debits do not re-inflate an outstanding balance.
		return nil
	}
	if closure.Status == models.ClosureStatusComplete {
		logger.WithFields(logrus.Fields{
			"module":    "transactionWorkflow.go",
			"pledge_id": pledgeId,
			"txn_id":    txn.ID,
		}).Warn("credit posted against a completed closure; balance left at 0")
		return nil
	}

	newBalance := closure.BalanceAmount.Sub(txn.Amount)
	if newBalance.LessThanOrEqual(decimal.Zero) {
		// Clamp at exactly 0 and finalize.
		closure.BalanceAmount = decimal.Zero
		return models.CompleteClosure(tx, &closure)
	}

	return tx.Model(&models.PledgeClosure{}).Where("id = ?", closure.ID).
		Update("balance_amount", newBalance).Error
}

func loadReplayedPosting(tx *gorm.DB, idempotencyKey string, result *PostingResult) error {
	var txn models.Transaction
	err := tx.Preload("MoneySource").
		Where("idempotency_key = ?", idempotencyKey).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("idempotency key %s succeeded but no transaction found", idempotencyKey)
		}
		return err
	}
	result.Transaction = &txn
	result.Replayed = true
	if txn.MoneySource != nil {
		result.NewBalance = txn.MoneySource.Balance
	}
	return nil
}

// mapLockError surfaces MySQL lock wait timeouts (1205) and deadlocks (1213)
// as the transient sentinel so callers can retry.
func mapLockError(err error) error {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		if mysqlErr.Number == 1205 || mysqlErr.Number == 1213 {
			return fmt.Errorf("%w: %v", utils.ErrorLockNotObtained, err)
		}
	}
	return err
}
