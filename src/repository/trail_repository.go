package repository

import (
	"context"
	"database/sql"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// TrailRepository handles persistence of trail snapshots.
type TrailRepository struct {
	db *gorm.DB
}

// NewTrailRepository creates a new repository instance bound to MainDB.
func NewTrailRepository() *TrailRepository {
	return &TrailRepository{
		db: database.MainDB,
	}
}

// NewTrailRepositoryReadOnly creates a repository bound to the read-only
// connection, for the miner's historical loads.
func NewTrailRepositoryReadOnly() *TrailRepository {
	return &TrailRepository{
		db: database.ReadOnlyDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TrailRepository) WithDB(db *gorm.DB) *TrailRepository {
	return &TrailRepository{db: db}
}

// InsertSnapshots appends snapshot rows. A conflict on
// (candidate_id, minute_offset, column_name) is silently skipped: snapshots
// are immutable once written and duplicate writes are idempotent no-ops.
func (r *TrailRepository) InsertSnapshots(ctx context.Context, rows []model.TrailSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "candidate_id"},
				{Name: "minute_offset"},
				{Name: "column_name"},
			},
			DoNothing: true,
		}).
		Create(&rows).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "TrailRepository",
			"op":        "InsertSnapshots",
			"candidate": rows[0].CandidateID,
			"offset":    rows[0].MinuteOffset,
			"rows":      len(rows),
		}).WithError(err).Error("Failed to insert trail snapshots")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "TrailRepository",
		"op":        "InsertSnapshots",
		"candidate": rows[0].CandidateID,
		"offset":    rows[0].MinuteOffset,
		"rows":      len(rows),
	}).Debug("Trail snapshots written")

	return nil
}

// GetMinuteSnapshot returns all columns captured for a candidate at a single
// minute offset, keyed by column name. Missing values stay nil.
func (r *TrailRepository) GetMinuteSnapshot(
	ctx context.Context,
	candidateID uint,
	minuteOffset int,
) (map[string]*float64, error) {

	var rows []model.TrailSnapshot
	err := r.db.WithContext(ctx).
		Where("candidate_id = ? AND minute_offset = ?", candidateID, minuteOffset).
		Find(&rows).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "TrailRepository",
			"op":        "GetMinuteSnapshot",
			"candidate": candidateID,
			"offset":    minuteOffset,
		}).WithError(err).Error("Failed to fetch minute snapshot")
		return nil, err
	}

	out := make(map[string]*float64, len(rows))
	for _, row := range rows {
		out[row.ColumnName] = row.Value
	}

	return out, nil
}

// MaxRecordedOffset returns the highest minute offset already written for a
// candidate, or -1 when the candidate has no snapshots yet.
func (r *TrailRepository) MaxRecordedOffset(ctx context.Context, candidateID uint) (int, error) {
	var max sql.NullInt64

	err := r.db.WithContext(ctx).
		Model(&model.TrailSnapshot{}).
		Select("MAX(minute_offset)").
		Where("candidate_id = ?", candidateID).
		Take(&max).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "TrailRepository",
			"op":        "MaxRecordedOffset",
			"candidate": candidateID,
		}).WithError(err).Error("Failed to fetch max recorded offset")
		return -1, err
	}

	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// LabeledRow is one mining input row: a trail value joined with the
// resolution label of its candidate.
type LabeledRow struct {
	CandidateID  uint
	MinuteOffset int
	ColumnName   string
	Section      string
	Value        *float64
	Label        string
}

// LoadLabeledRows joins trail snapshots with their resolved, labeled
// candidates. Only candidates in the given id set contribute rows.
func (r *TrailRepository) LoadLabeledRows(ctx context.Context, candidateIDs []uint) ([]LabeledRow, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	var out []LabeledRow
	err := r.db.WithContext(ctx).
		Model(&model.TrailSnapshot{}).
		Select(`trail_snapshots.candidate_id,
			trail_snapshots.minute_offset,
			trail_snapshots.column_name,
			trail_snapshots.section,
			trail_snapshots.value,
			trade_candidates.label`).
		Joins("JOIN trade_candidates ON trade_candidates.id = trail_snapshots.candidate_id").
		Where("trail_snapshots.candidate_id IN ?", candidateIDs).
		Where("trade_candidates.label IS NOT NULL").
		Order("trail_snapshots.candidate_id ASC, trail_snapshots.minute_offset ASC").
		Scan(&out).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "TrailRepository",
			"op":         "LoadLabeledRows",
			"candidates": len(candidateIDs),
		}).WithError(err).Error("Failed to load labeled trail rows")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TrailRepository",
		"op":          "LoadLabeledRows",
		"candidates":  len(candidateIDs),
		"rows_return": len(out),
	}).Info("Labeled trail rows loaded")

	return out, nil
}
