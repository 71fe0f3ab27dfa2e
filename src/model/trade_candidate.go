package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeCandidate is one evaluated entry opportunity, tracked from the
// incoming signal until resolution. Rows are append-only history: a
// candidate is never deleted, only transitioned to a terminal status.
type TradeCandidate struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Pair            string          `gorm:"type:varchar(50);not null;index:idx_trade_candidates_pair_signal" json:"pair"`
	GoatWallet      string          `gorm:"type:varchar(100);index" json:"goat_wallet"`
	SignalTs        time.Time       `gorm:"not null;index:idx_trade_candidates_pair_signal" json:"signal_ts"`
	EntryPrice      decimal.Decimal `gorm:"type:double precision;not null" json:"entry_price"`
	Status          string          `gorm:"size:50;not null;default:open;index" json:"status"`
	Decision        string          `gorm:"size:20" json:"decision"`
	DecisionReason  string          `gorm:"type:jsonb" json:"decision_reason"`
	RuleSetVersion  string          `gorm:"size:100" json:"rule_set_version"`
	RealizedGainPct *float64        `json:"realized_gain_pct,omitempty"`
	MaxFavorablePct *float64        `json:"max_favorable_pct,omitempty"`
	Label           *string         `gorm:"size:10" json:"label,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (TradeCandidate) TableName() string {
	return "trade_candidates"
}

const (
	CandidateStatusOpen      = "open"
	CandidateStatusClosed    = "closed"
	CandidateStatusCancelled = "cancelled"
	CandidateStatusMissed    = "missed"
	CandidateStatusRejected  = "rejected"

	DecisionGo   = "GO"
	DecisionNoGo = "NO_GO"

	LabelGood = "good"
	LabelBad  = "bad"
)

// IsTerminal reports whether the candidate already reached a final status.
func (c *TradeCandidate) IsTerminal() bool {
	switch c.Status {
	case CandidateStatusClosed, CandidateStatusCancelled, CandidateStatusMissed, CandidateStatusRejected:
		return true
	}
	return false
}

// LabelFor applies the good-trade rule to a realized gain.
func LabelFor(realizedGainPct, goodTradeThresholdPct float64) string {
	if realizedGainPct >= goodTradeThresholdPct {
		return LabelGood
	}
	return LabelBad
}
