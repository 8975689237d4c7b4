package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Jewel is one collateral item on a pledge. Rows live and die with the
// pledge; there is no standalone jewel operation.
type Jewel struct {
	ID          int             `gorm:"primary_key" json:"id"`
	PledgeId    int             `gorm:"index;not null" json:"pledge_id"`
	JewelType   string          `gorm:"size:50;not null" json:"jewel_type"`
	Description string          `gorm:"size:255" json:"description"`
	Quality     string          `gorm:"size:20" json:"quality"`
	Quantity    int             `gorm:"not null;default:1" json:"quantity"`
	GrossWeight decimal.Decimal `gorm:"type:decimal(10,3);default:0" json:"gross_weight"`
	NetWeight   decimal.Decimal `gorm:"type:decimal(10,3);default:0" json:"net_weight"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewJewel struct {
	JewelType   string          `json:"jewel_type" binding:"required,max=50"`
	Description string          `json:"description" binding:"omitempty,max=255"`
	Quality     string          `json:"quality" binding:"omitempty,max=20"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight"`
}
