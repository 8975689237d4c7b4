package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
)

// CapitalSource names where working capital came from (owner injection,
// investor, retained profit). Ledger entries may attach to one via the
// tagged transactionable reference.
type CapitalSource struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Remarks   string    `gorm:"type:text" json:"remarks"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCapitalSource struct {
	Name    string `json:"name" binding:"required,max=100"`
	Remarks string `json:"remarks"`
}

func CreateCapitalSource(ctx context.Context, input *NewCapitalSource) (*CapitalSource, error) {
	if err := utils.ValidateUnique[CapitalSource](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	source := CapitalSource{
		Name:     input.Name,
		Remarks:  input.Remarks,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&source).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

func GetCapitalSources(ctx context.Context) ([]*CapitalSource, error) {
	db := config.GetDB()
	var results []*CapitalSource
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
