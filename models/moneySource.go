package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"github.com/shopspring/decimal"
)

// MoneySource is a named pool of funds (cash drawer, bank account, wallet).
// Balance is mutated ONLY by workflow.ProcessTransaction while the row is
// locked; it equals the signed sum of all committed transactions since
// creation.
type MoneySource struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"index;size:100;not null" json:"name" binding:"required"`
	SourceType    MoneySourceType `gorm:"size:12;default:'cash';not null" json:"source_type"`
	AccountNumber string          `gorm:"size:50" json:"account_number"`
	BankName      string          `gorm:"size:100" json:"bank_name"`
	Branches      string          `json:"branches"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMoneySource struct {
	Name          string          `json:"name" binding:"required,max=100"`
	SourceType    MoneySourceType `json:"source_type" binding:"required,oneof=cash bank wallet"`
	AccountNumber string          `json:"account_number" binding:"omitempty,max=50"`
	BankName      string          `json:"bank_name" binding:"omitempty,max=100"`
	Branches      string          `json:"branches"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewMoneySource) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[MoneySource](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[MoneySource](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateMoneySource(ctx context.Context, input *NewMoneySource) (*MoneySource, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	source := MoneySource{
		Name:          input.Name,
		SourceType:    input.SourceType,
		AccountNumber: input.AccountNumber,
		BankName:      input.BankName,
		Branches:      input.Branches,
		Balance:       decimal.Zero,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&source).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

// UpdateMoneySource edits descriptive fields only. Balance is off limits:
// corrections go through offsetting ledger entries.
func UpdateMoneySource(ctx context.Context, id int, input *NewMoneySource) (*MoneySource, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	source, err := utils.FetchModel[MoneySource](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&source).Updates(map[string]interface{}{
		"Name":          input.Name,
		"SourceType":    input.SourceType,
		"AccountNumber": input.AccountNumber,
		"BankName":      input.BankName,
		"Branches":      input.Branches,
	}).Error
	if err != nil {
		return nil, err
	}
	return source, nil
}

func GetMoneySource(ctx context.Context, id int) (*MoneySource, error) {
	return utils.FetchModel[MoneySource](ctx, id)
}

func GetMoneySources(ctx context.Context, sourceType *string, name *string) ([]*MoneySource, error) {
	db := config.GetDB()
	var results []*MoneySource

	dbCtx := db.WithContext(ctx)
	if sourceType != nil && len(*sourceType) > 0 {
		dbCtx = dbCtx.Where("source_type = ?", sourceType)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveMoneySource(ctx context.Context, id int, isActive bool) (*MoneySource, error) {
	source, err := utils.FetchModel[MoneySource](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&source).Update("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	return source, nil
}
