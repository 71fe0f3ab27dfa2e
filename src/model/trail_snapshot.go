package model

import "time"

// TrailSnapshot is one feature reading for a candidate at a given minute
// offset from entry. Rows are immutable once written; the composite unique
// index makes duplicate writes for the same (candidate, offset, column)
// idempotent no-ops.
type TrailSnapshot struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CandidateID  uint      `gorm:"not null;uniqueIndex:ux_trail_candidate_offset_column,priority:1;index" json:"candidate_id"`
	MinuteOffset int       `gorm:"not null;uniqueIndex:ux_trail_candidate_offset_column,priority:2" json:"minute_offset"`
	ColumnName   string    `gorm:"type:varchar(100);not null;uniqueIndex:ux_trail_candidate_offset_column,priority:3" json:"column_name"`
	Value        *float64  `json:"value"`
	Section      string    `gorm:"type:varchar(50);not null" json:"section"`
	CreatedAt    time.Time `json:"created_at"`
}

func (TrailSnapshot) TableName() string {
	return "trail_snapshots"
}

// Feature sections. A section is the unit of partial failure: when one
// provider fails, only its own columns are nulled for that sample.
const (
	SectionPriceMomentum = "price_momentum"
	SectionOrderBook     = "order_book"
	SectionWhaleActivity = "whale_activity"
	SectionSessionState  = "session_state"
	SectionCrossAsset    = "cross_asset"
	SectionPatternScores = "pattern_scores"
)
