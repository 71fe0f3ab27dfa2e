package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one spot price observation for a pair. The gate and the
// momentum/cross-asset feature sections read these; the pricefeed command
// and the quote connector write them.
type PriceTick struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"type:varchar(50);not null;uniqueIndex:ux_price_ticks_symbol_datetime,priority:1;index:idx_price_ticks_symbol_datetime,priority:1" json:"symbol"`
	Datetime  time.Time       `gorm:"not null;uniqueIndex:ux_price_ticks_symbol_datetime,priority:2;index:idx_price_ticks_symbol_datetime,priority:2" json:"datetime"`
	Price     decimal.Decimal `gorm:"type:double precision;not null" json:"price"`
	Volume    decimal.Decimal `gorm:"type:double precision" json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}

func (PriceTick) TableName() string {
	return "price_ticks"
}
