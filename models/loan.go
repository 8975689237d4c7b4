package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan holds the principal/interest terms issued against a Pledge (1:1).
// due_date drives the overdue transition; status mirrors the pledge lifecycle
// and is monotonic.
type Loan struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	PledgeId           int             `gorm:"uniqueIndex;not null" json:"pledge_id"`
	LoanNo             string          `gorm:"uniqueIndex;size:30;not null" json:"loan_no"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	InterestPercentage decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"interest_percentage"`
	PeriodMonths       int             `gorm:"not null;default:6" json:"period_months"`
	StartDate          time.Time       `gorm:"not null" json:"start_date"`
	DueDate            time.Time       `gorm:"index;not null" json:"due_date"`
	Status             LoanStatus      `gorm:"size:12;default:'active';not null" json:"status"`
	PaymentMethod      PaymentMethod   `gorm:"size:12;default:'cash'" json:"payment_method"`
	ServiceFee         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"service_fee"`
	BranchId           int             `gorm:"index" json:"branch_id"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// DueDateFor computes the due date from the start date and period.
func DueDateFor(start time.Time, periodMonths int) time.Time {
	if periodMonths <= 0 {
		periodMonths = 6
	}
	return start.AddDate(0, periodMonths, 0)
}

// ElapsedMonths counts started months between from and asOf, minimum 1.
// A loan repaid on day one still owes one month of interest.
func ElapsedMonths(from, asOf time.Time) int {
	if asOf.Before(from) {
		return 1
	}
	months := (asOf.Year()-from.Year())*12 + int(asOf.Month()) - int(from.Month())
	// A day past the anniversary starts the next month; the anniversary
	// itself does not.
	if asOf.Day() > from.Day() {
		months++
	}
	if months < 1 {
		months = 1
	}
	return months
}
