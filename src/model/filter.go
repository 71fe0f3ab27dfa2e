package model

import "time"

// FilterSuggestion is a mined single-column threshold rule: a candidate
// passes when its trail value at MinuteOffset lies inside [FromValue, ToValue].
// Suggestions are derived by the miner, never hand-authored except as an
// explicit override row.
type FilterSuggestion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ColumnName    string    `gorm:"type:varchar(100);not null;index" json:"column_name"`
	MinuteOffset  int       `gorm:"not null" json:"minute_offset"`
	FromValue     float64   `gorm:"type:double precision;not null" json:"from_value"`
	ToValue       float64   `gorm:"type:double precision;not null" json:"to_value"`
	GoodKeptPct   float64   `gorm:"type:double precision;not null" json:"good_kept_pct"`
	BadRemovedPct float64   `gorm:"type:double precision;not null" json:"bad_removed_pct"`
	MiningRunID   uint      `gorm:"index" json:"mining_run_id"`
	DiscoveredAt  time.Time `gorm:"not null" json:"discovered_at"`
}

func (FilterSuggestion) TableName() string {
	return "filter_suggestions"
}

// FilterCombination is an ordered conjunction of suggestions evaluated as a
// logical AND. Aggregates are over the mining dataset the combination was
// built from.
type FilterCombination struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	FilterIDs      []uint    `gorm:"serializer:json;type:jsonb;not null" json:"filter_ids"`
	GoodKeptPct    float64   `gorm:"type:double precision;not null" json:"good_kept_pct"`
	BadRemovedPct  float64   `gorm:"type:double precision;not null" json:"bad_removed_pct"`
	BadTradesAfter int       `gorm:"not null" json:"bad_trades_after"`
	MinuteOffset   int       `gorm:"not null" json:"minute_offset"`
	MiningRunID    uint      `gorm:"index" json:"mining_run_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (FilterCombination) TableName() string {
	return "filter_combinations"
}

// MiningRun is one execution of the filter miner. Append-only; a failed run
// keeps the previously accepted combinations active.
type MiningRun struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	RunUID               string     `gorm:"size:64;uniqueIndex" json:"run_uid"`
	StartedAt            time.Time  `gorm:"not null;index" json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	Status               string     `gorm:"size:20;not null" json:"status"`
	TotalFiltersAnalyzed int        `json:"total_filters_analyzed"`
	CandidatesAnalyzed   int        `json:"candidates_analyzed"`
	BestCombinationID    *uint      `gorm:"index" json:"best_combination_id,omitempty"`
	Error                string     `gorm:"type:text" json:"error,omitempty"`
}

func (MiningRun) TableName() string {
	return "mining_runs"
}

const (
	MiningRunStatusRunning   = "running"
	MiningRunStatusCompleted = "completed"
	MiningRunStatusFailed    = "failed"
)

// FilterProject is a named rule set evaluated independently against each
// candidate. Each project carries its own active combination and the trail
// offset it is evaluated at.
type FilterProject struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Enabled             bool      `gorm:"not null;default:true" json:"enabled"`
	ActiveCombinationID *uint     `gorm:"index" json:"active_combination_id,omitempty"`
	EvalMinuteOffset    int       `gorm:"not null;default:0" json:"eval_minute_offset"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (FilterProject) TableName() string {
	return "filter_projects"
}
