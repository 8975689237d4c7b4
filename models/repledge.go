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
)

// RepledgeSource is an external bank/financier the business borrows from
// against already-pledged jewels.
type RepledgeSource struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Contact   string    `gorm:"size:100" json:"contact"`
	Phone     string    `gorm:"size:20" json:"phone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRepledgeSource struct {
	Name    string `json:"name" binding:"required,max=100"`
	Contact string `json:"contact" binding:"omitempty,max=100"`
	Phone   string `json:"phone"`
}

func CreateRepledgeSource(ctx context.Context, input *NewRepledgeSource) (*RepledgeSource, error) {
	if err := utils.ValidateUnique[RepledgeSource](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}
	source := RepledgeSource{
		Name:     input.Name,
		Contact:  input.Contact,
		Phone:    input.Phone,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&source).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

func GetRepledgeSources(ctx context.Context) ([]*RepledgeSource, error) {
	db := config.GetDB()
	var results []*RepledgeSource
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Repledge is a loan the business takes from a RepledgeSource against
// collateral already pledged to it. It references the originating loan for
// traceability but does not own it. Branch assignment comes from the acting
// user at creation; reads are auto-scoped by the branch guard.
type Repledge struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	ReNo               string          `gorm:"uniqueIndex;size:30;not null" json:"re_no"`
	RepledgeSourceId   int             `gorm:"index;not null" json:"repledge_source_id"`
	RepledgeSource     *RepledgeSource `json:"repledge_source,omitempty"`
	LoanId             int             `gorm:"index;not null" json:"loan_id"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	InterestPercentage decimal.Decimal `gorm:"type:decimal(8,4);default:0" json:"interest_percentage"`
	StartDate          time.Time       `gorm:"not null" json:"start_date"`
	DueDate            time.Time       `gorm:"index;not null" json:"due_date"`
	EndDate            *time.Time      `json:"end_date"`
	Status             RepledgeStatus  `gorm:"size:12;default:'active';not null;index" json:"status"`
	BranchId           int             `gorm:"index;not null" json:"branch_id"`
	CreatedBy          int             `json:"created_by"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRepledge struct {
	RepledgeSourceId   int             `json:"repledge_source_id" binding:"required"`
	LoanId             int             `json:"loan_id" binding:"required"`
	Amount             decimal.Decimal `json:"amount" binding:"required"`
	InterestPercentage decimal.Decimal `json:"interest_percentage"`
	StartDate          string          `json:"start_date" binding:"required"`
	DueDate            string          `json:"due_date" binding:"required"`
}

// RepledgeClosure captures the payoff of a repledge, mirroring PledgeClosure
// without the ledger's auto-task behavior.
type RepledgeClosure struct {
	ID            int             `gorm:"primary_key" json:"id"`
	RepledgeId    int             `gorm:"uniqueIndex;not null" json:"repledge_id"`
	PrincipalPaid decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"principal_paid"`
	InterestPaid  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"interest_paid"`
	TotalPaid     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_paid"`
	Remarks       string          `gorm:"type:text" json:"remarks"`
	CreatedBy     int             `json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewRepledgeClosure struct {
	PrincipalPaid decimal.Decimal `json:"principal_paid" binding:"required"`
	InterestPaid  decimal.Decimal `json:"interest_paid"`
	Remarks       string          `json:"remarks"`
}

func (input *NewRepledge) validate(ctx context.Context) (start, due time.Time, err error) {
	if err := utils.ValidateResourceId[RepledgeSource](ctx, input.RepledgeSourceId); err != nil {
		return start, due, errors.New("repledge source not found")
	}
	if err := utils.ValidateResourceId[Loan](ctx, input.LoanId); err != nil {
		return start, due, errors.New("loan not found")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return start, due, utils.NewValidationError("amount", "must be greater than zero")
	}
	start, err = utils.ParseDateString(input.StartDate, "")
	if err != nil {
		return start, due, utils.NewValidationError("start_date", "must be yyyy-mm-dd")
	}
	due, err = utils.ParseDateString(input.DueDate, "")
	if err != nil {
		return start, due, utils.NewValidationError("due_date", "must be yyyy-mm-dd")
	}
	if due.Before(start) {
		return start, due, utils.NewValidationError("due_date", "must not be before start_date")
	}
	return start, due, nil
}

func CreateRepledge(ctx context.Context, input *NewRepledge) (*Repledge, error) {
	start, due, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}

	branchId, _ := utils.GetBranchIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)

	repledge := Repledge{
		RepledgeSourceId:   input.RepledgeSourceId,
		LoanId:             input.LoanId,
		Amount:             input.Amount,
		InterestPercentage: input.InterestPercentage,
		StartDate:          utils.DateOnly(start),
		DueDate:            utils.DateOnly(due),
		Status:             RepledgeStatusActive,
		BranchId:           branchId,
		CreatedBy:          userId,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repledge.ReNo = "RP-" + time.Now().Format("20060102150405.000000")
		if err := tx.Create(&repledge).Error; err != nil {
			return err
		}
		repledge.ReNo = fmt.Sprintf("RP-%06d", repledge.ID)
		return tx.Model(&Repledge{}).Where("id = ?", repledge.ID).
			Update("re_no", repledge.ReNo).Error
	})
	if err != nil {
		return nil, err
	}
	return &repledge, nil
}

func GetRepledge(ctx context.Context, id int) (*Repledge, error) {
	return utils.FetchModel[Repledge](ctx, id, "RepledgeSource")
}

func GetRepledges(ctx context.Context, status *string, sourceId *int) ([]*Repledge, error) {
	db := config.GetDB()
	var results []*Repledge

	dbCtx := db.WithContext(ctx).Preload("RepledgeSource")
	if status != nil && len(*status) > 0 {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if sourceId != nil && *sourceId > 0 {
		dbCtx = dbCtx.Where("repledge_source_id = ?", *sourceId)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CloseRepledge records the payoff and flips the repledge to closed in one
// transaction. A closed repledge rejects further mutation.
func CloseRepledge(ctx context.Context, id int, input *NewRepledgeClosure) (*RepledgeClosure, error) {
	repledge, err := utils.FetchModel[Repledge](ctx, id)
	if err != nil {
		return nil, err
	}
	if repledge.Status == RepledgeStatusClosed {
		return nil, fmt.Errorf("repledge %s is already closed", repledge.ReNo)
	}
	if input.PrincipalPaid.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("principal_paid", "must be greater than zero")
	}
	if input.InterestPaid.IsNegative() {
		return nil, utils.NewValidationError("interest_paid", "must not be negative")
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	closure := RepledgeClosure{
		RepledgeId:    repledge.ID,
		PrincipalPaid: input.PrincipalPaid,
		InterestPaid:  input.InterestPaid,
		TotalPaid:     input.PrincipalPaid.Add(input.InterestPaid),
		Remarks:       input.Remarks,
		CreatedBy:     userId,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&closure).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&Repledge{}).Where("id = ? AND status = ?", repledge.ID, RepledgeStatusActive).
			Updates(map[string]interface{}{"status": RepledgeStatusClosed, "end_date": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return &closure, nil
}

func GetRepledgeClosure(ctx context.Context, repledgeId int) (*RepledgeClosure, error) {
	db := config.GetDB()
	var closure RepledgeClosure
	err := db.WithContext(ctx).Where("repledge_id = ?", repledgeId).First(&closure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &closure, nil
}
