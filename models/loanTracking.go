package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoanTracking backs the customer-facing portal: one row per tracked loan,
// looked up by loan number plus the customer's phone and access code.
// Provisioned by the PledgeCreated hook on branches with the tracking flag.
type LoanTracking struct {
	ID         int       `gorm:"primary_key" json:"id"`
	PledgeId   int       `gorm:"uniqueIndex;not null" json:"pledge_id"`
	LoanNo     string    `gorm:"index;size:30;not null" json:"loan_no"`
	Phone      string    `gorm:"index;size:20" json:"phone"`
	AccessCode string    `gorm:"size:12;not null" json:"-"`
	BranchId   int       `gorm:"index" json:"branch_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TrackingView is what the portal returns. No internal ids beyond the loan
// number the customer already holds.
type TrackingView struct {
	LoanNo        string     `json:"loan_no"`
	Status        string     `json:"status"`
	DueDate       time.Time  `json:"due_date"`
	BalanceAmount *string    `json:"balance_amount,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// ProvisionLoanTracking creates the tracking row for a pledge. Idempotent:
// an existing row is returned as is.
func ProvisionLoanTracking(ctx context.Context, pledge *Pledge, loan *Loan) (*LoanTracking, error) {
	db := config.GetDB()

	var existing LoanTracking
	err := db.WithContext(ctx).Where("pledge_id = ?", pledge.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var customer Customer
	if err := db.WithContext(ctx).Where("id = ?", pledge.CustomerId).First(&customer).Error; err != nil {
		return nil, err
	}

	tracking := LoanTracking{
		PledgeId:   pledge.ID,
		LoanNo:     loan.LoanNo,
		Phone:      customer.Phone,
		AccessCode: strings.ToUpper(uuid.NewString()[:8]),
		BranchId:   pledge.BranchId,
	}
	if err := db.WithContext(ctx).Create(&tracking).Error; err != nil {
		return nil, err
	}
	return &tracking, nil
}

// TrackLoan is the portal lookup. The caller is unauthenticated, so the
// match requires loan number + phone + access code. Result is cached
// briefly; the cache key includes the access code so a miss stays cheap.
func TrackLoan(ctx context.Context, loanNo, phone, accessCode string) (*TrackingView, error) {
	cacheKey := "Track:" + loanNo + ":" + accessCode
	var cached TrackingView
	if ok, _ := config.GetRedisObject(cacheKey, &cached); ok {
		return &cached, nil
	}

	db := config.GetDB()
	var tracking LoanTracking
	err := db.WithContext(ctx).
		Where("loan_no = ? AND phone = ? AND access_code = ?", loanNo, phone, accessCode).
		First(&tracking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	var pledge Pledge
	err = db.WithContext(ctx).Preload("Loan").Preload("Closure").
		Where("id = ?", tracking.PledgeId).First(&pledge).Error
	if err != nil {
		return nil, err
	}
	if pledge.Loan == nil {
		return nil, utils.ErrorRecordNotFound
	}

	view := TrackingView{
		LoanNo:  tracking.LoanNo,
		Status:  string(pledge.Status),
		DueDate: pledge.Loan.DueDate,
	}
	if pledge.Closure != nil {
		bal := pledge.Closure.BalanceAmount.String()
		view.BalanceAmount = &bal
		view.ClosedAt = pledge.Closure.ClosedAt
	}

	_ = config.SetRedisObject(cacheKey, &view, 30*time.Second)
	return &view, nil
}
