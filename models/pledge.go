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

// Pledge is a customer's collateral submission. It owns its Loan, Jewels and
// at most one PledgeClosure; their lifecycles cascade from the pledge.
type Pledge struct {
	ID             int            `gorm:"primary_key" json:"id"`
	PledgeNo       string         `gorm:"uniqueIndex;size:30;not null" json:"pledge_no"`
	CustomerId     int            `gorm:"index;not null" json:"customer_id"`
	Customer       *Customer      `json:"customer,omitempty"`
	BranchId       int            `gorm:"index;not null" json:"branch_id"`
	Status         PledgeStatus   `gorm:"size:12;default:'active';not null;index" json:"status"`
	ApprovalStatus ApprovalStatus `gorm:"size:12;default:'pending';not null" json:"approval_status"`
	Loan           *Loan          `json:"loan,omitempty"`
	Jewels         []Jewel        `json:"jewels,omitempty"`
	Closure        *PledgeClosure `gorm:"foreignKey:PledgeId" json:"closure,omitempty"`
	Remarks        string         `gorm:"type:text" json:"remarks"`
	CreatedBy      int            `json:"created_by"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPledge struct {
	CustomerId         int             `json:"customer_id" binding:"required"`
	Amount             decimal.Decimal `json:"amount" binding:"required"`
	InterestPercentage decimal.Decimal `json:"interest_percentage" binding:"required"`
	PeriodMonths       int             `json:"period_months" binding:"omitempty,min=1,max=36"`
	StartDate          string          `json:"start_date" binding:"required"`
	PaymentMethod      PaymentMethod   `json:"payment_method" binding:"omitempty,oneof=cash transfer"`
	ServiceFee         decimal.Decimal `json:"service_fee"`
	Jewels             []NewJewel      `json:"jewels" binding:"required,min=1,dive"`
	Remarks            string          `json:"remarks"`
}

func (input *NewPledge) validate(ctx context.Context) (time.Time, error) {
	if err := utils.ValidateResourceId[Customer](ctx, input.CustomerId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return time.Time{}, utils.NewValidationError("customer_id", "customer not found")
		}
		return time.Time{}, err
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return time.Time{}, utils.NewValidationError("amount", "must be greater than zero")
	}
	if input.InterestPercentage.LessThan(decimal.Zero) {
		return time.Time{}, utils.NewValidationError("interest_percentage", "must not be negative")
	}
	start, err := utils.ParseDateString(input.StartDate, "")
	if err != nil {
		return time.Time{}, utils.NewValidationError("start_date", "must be yyyy-mm-dd")
	}
	return start, nil
}

// CreatePledge performs intake: pledge, loan and jewels in one transaction.
// Reference numbers derive from the pledge id so they are race free without a
// separate sequence table. Publishes the PledgeCreated hook after commit.
func CreatePledge(ctx context.Context, input *NewPledge) (*Pledge, error) {
	start, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}

	branchId, _ := utils.GetBranchIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)

	pledge := Pledge{
		CustomerId:     input.CustomerId,
		BranchId:       branchId,
		Status:         PledgeStatusActive,
		ApprovalStatus: ApprovalStatusPending,
		Remarks:        input.Remarks,
		CreatedBy:      userId,
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = PaymentMethodCash
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Placeholder number until the id exists.
		pledge.PledgeNo = "PLG-" + time.Now().Format("20060102150405.000000")
		if err := tx.Create(&pledge).Error; err != nil {
			return err
		}
		pledge.PledgeNo = fmt.Sprintf("PLG-%06d", pledge.ID)
		if err := tx.Model(&Pledge{}).Where("id = ?", pledge.ID).
			Update("pledge_no", pledge.PledgeNo).Error; err != nil {
			return err
		}

		loan := Loan{
			PledgeId:           pledge.ID,
			LoanNo:             fmt.Sprintf("L-%d", pledge.ID),
			Amount:             input.Amount,
			InterestPercentage: input.InterestPercentage,
			PeriodMonths:       input.PeriodMonths,
			StartDate:          utils.DateOnly(start),
			DueDate:            DueDateFor(utils.DateOnly(start), input.PeriodMonths),
			Status:             PledgeStatusActive,
			PaymentMethod:      paymentMethod,
			ServiceFee:         input.ServiceFee,
			BranchId:           branchId,
		}
		if loan.PeriodMonths <= 0 {
			loan.PeriodMonths = 6
		}
		if err := tx.Create(&loan).Error; err != nil {
			return err
		}
		pledge.Loan = &loan

		for _, j := range input.Jewels {
			jewel := Jewel{
				PledgeId:    pledge.ID,
				JewelType:   j.JewelType,
				Description: j.Description,
				Quality:     j.Quality,
				Quantity:    j.Quantity,
				GrossWeight: j.GrossWeight,
				NetWeight:   j.NetWeight,
			}
			if err := tx.Create(&jewel).Error; err != nil {
				return err
			}
			pledge.Jewels = append(pledge.Jewels, jewel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishPledgeCreated(ctx, PledgeCreatedEvent{Pledge: &pledge, Loan: pledge.Loan})
	return &pledge, nil
}

func GetPledge(ctx context.Context, id int) (*Pledge, error) {
	return utils.FetchModel[Pledge](ctx, id, "Customer", "Loan", "Jewels", "Closure")
}

func GetPledges(ctx context.Context, status *string, customerId *int) ([]*Pledge, error) {
	db := config.GetDB()
	var results []*Pledge

	dbCtx := db.WithContext(ctx).Preload("Customer").Preload("Loan")
	if status != nil && len(*status) > 0 {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ApprovePledge(ctx context.Context, id int) (*Pledge, error) {
	pledge, err := utils.FetchModel[Pledge](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&pledge).Update("ApprovalStatus", ApprovalStatusApproved).Error; err != nil {
		return nil, err
	}
	return pledge, nil
}

// TransitionPledge applies one explicit staff-driven status write, enforcing
// lifecycle monotonicity, and mirrors the status onto the loan. The read and
// both writes run on the same transaction; the status-guarded update keeps
// monotonicity when a concurrent transition commits between the read and the
// write.
func TransitionPledge(ctx context.Context, id int, to PledgeStatus) (*Pledge, error) {
	db := config.GetDB()
	var pledge Pledge
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&pledge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if !pledge.Status.CanTransition(to) {
			return fmt.Errorf("pledge %s cannot move from %s to %s", pledge.PledgeNo, pledge.Status, to)
		}
		res := tx.Model(&Pledge{}).Where("id = ? AND status = ?", id, pledge.Status).Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("pledge %s cannot move from %s to %s", pledge.PledgeNo, pledge.Status, to)
		}
		if err := tx.Model(&Loan{}).Where("pledge_id = ?", id).Update("status", to).Error; err != nil {
			return err
		}
		pledge.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pledge, nil
}

func ReleasePledge(ctx context.Context, id int) (*Pledge, error) {
	return TransitionPledge(ctx, id, PledgeStatusReleased)
}

func CancelPledge(ctx context.Context, id int) (*Pledge, error) {
	return TransitionPledge(ctx, id, PledgeStatusCancelled)
}

func MarkPledgeDefault(ctx context.Context, id int) (*Pledge, error) {
	return TransitionPledge(ctx, id, PledgeStatusDefault)
}
