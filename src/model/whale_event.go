package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WhaleEvent is one confirmed on-chain trade delivered by the webhook.
// Delivery is at-least-once; the unique signature makes re-deliveries
// idempotent no-ops.
type WhaleEvent struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Signature string          `gorm:"type:varchar(150);not null;uniqueIndex" json:"signature"`
	Wallet    string          `gorm:"type:varchar(100);not null;index:idx_whale_events_wallet_block_time,priority:1" json:"wallet"`
	Pair      string          `gorm:"type:varchar(50);not null;index" json:"pair"`
	Side      string          `gorm:"size:10;not null" json:"side"`
	AmountUsd decimal.Decimal `gorm:"type:double precision;not null" json:"amount_usd"`
	Price     decimal.Decimal `gorm:"type:double precision" json:"price"`
	BlockTime time.Time       `gorm:"not null;index:idx_whale_events_wallet_block_time,priority:2" json:"block_time"`
	// set once the buy signal's decision is durable; a redelivery with no
	// candidate linked yet is an incomplete delivery, not a duplicate
	CandidateID *uint     `gorm:"index" json:"candidate_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (WhaleEvent) TableName() string {
	return "whale_events"
}

const (
	WhaleSideBuy  = "buy"
	WhaleSideSell = "sell"
)
