package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// FilterRepository handles persistence of mined filters, combinations,
// mining runs and filter projects. The miner is the only writer; the
// validator only ever reads the active combinations.
type FilterRepository struct {
	db *gorm.DB
}

// NewFilterRepository creates a new repository instance bound to MainDB.
func NewFilterRepository() *FilterRepository {
	return &FilterRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *FilterRepository) WithDB(db *gorm.DB) *FilterRepository {
	return &FilterRepository{db: db}
}

// CreateMiningRun opens a new run record in status running.
func (r *FilterRepository) CreateMiningRun(ctx context.Context, run *model.MiningRun) error {
	if run.Status == "" {
		run.Status = model.MiningRunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.RunUID == "" {
		run.RunUID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Create(run).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "CreateMiningRun",
		}).WithError(err).Error("Failed to create mining run")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "FilterRepository",
		"op":     "CreateMiningRun",
		"run_id": run.ID,
	}).Info("Mining run started")

	return nil
}

// CompleteMiningRun marks a run completed with its final counters.
func (r *FilterRepository) CompleteMiningRun(
	ctx context.Context,
	runID uint,
	totalFiltersAnalyzed int,
	candidatesAnalyzed int,
	bestCombinationID *uint,
) error {

	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&model.MiningRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":                 model.MiningRunStatusCompleted,
			"completed_at":           now,
			"total_filters_analyzed": totalFiltersAnalyzed,
			"candidates_analyzed":    candidatesAnalyzed,
			"best_combination_id":    bestCombinationID,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "FilterRepository",
			"op":     "CompleteMiningRun",
			"run_id": runID,
		}).WithError(err).Error("Failed to complete mining run")
		return err
	}

	return nil
}

// FailMiningRun marks a run failed. The previously active combinations stay
// untouched: a failed run never disables the rule set the trading path uses.
func (r *FilterRepository) FailMiningRun(ctx context.Context, runID uint, cause string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&model.MiningRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":       model.MiningRunStatusFailed,
			"completed_at": now,
			"error":        cause,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "FilterRepository",
			"op":     "FailMiningRun",
			"run_id": runID,
		}).WithError(err).Error("Failed to mark mining run as failed")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "FilterRepository",
		"op":     "FailMiningRun",
		"run_id": runID,
		"cause":  cause,
	}).Warn("Mining run failed, previous filters remain active")

	return nil
}

// SaveSuggestions persists mined single-column suggestions for a run.
func (r *FilterRepository) SaveSuggestions(ctx context.Context, rows []model.FilterSuggestion) error {
	if len(rows) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Create(&rows).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "SaveSuggestions",
			"rows": len(rows),
		}).WithError(err).Error("Failed to save filter suggestions")
		return err
	}

	return nil
}

// SaveCombination persists a mined combination.
func (r *FilterRepository) SaveCombination(ctx context.Context, combo *model.FilterCombination) error {
	err := r.db.WithContext(ctx).Create(combo).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "SaveCombination",
		}).WithError(err).Error("Failed to save filter combination")
		return err
	}

	return nil
}

// ListProjects returns all filter projects, enabled or not.
func (r *FilterRepository) ListProjects(ctx context.Context) ([]model.FilterProject, error) {
	var out []model.FilterProject
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "ListProjects",
		}).WithError(err).Error("Failed to list filter projects")
		return nil, err
	}
	return out, nil
}

// EnabledProjects returns only the projects the validator must evaluate.
func (r *FilterRepository) EnabledProjects(ctx context.Context) ([]model.FilterProject, error) {
	var out []model.FilterProject
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "EnabledProjects",
		}).WithError(err).Error("Failed to list enabled filter projects")
		return nil, err
	}
	return out, nil
}

// ActivateCombination points a project at a new combination. Only called at
// the end of a successful mining run.
func (r *FilterRepository) ActivateCombination(ctx context.Context, projectID, combinationID uint) error {
	res := r.db.WithContext(ctx).
		Model(&model.FilterProject{}).
		Where("id = ?", projectID).
		Update("active_combination_id", combinationID)

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "FilterRepository",
			"op":          "ActivateCombination",
			"project":     projectID,
			"combination": combinationID,
		}).WithError(res.Error).Error("Failed to activate combination")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "FilterRepository",
		"op":          "ActivateCombination",
		"project":     projectID,
		"combination": combinationID,
	}).Info("Active combination updated")

	return nil
}

// GetCombination fetches a combination together with its member suggestions,
// preserving the member order stored on the combination.
// Returns (nil, nil, nil) if the combination does not exist.
func (r *FilterRepository) GetCombination(
	ctx context.Context,
	id uint,
) (*model.FilterCombination, []model.FilterSuggestion, error) {

	var combo model.FilterCombination
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&combo).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "GetCombination",
			"id":   id,
		}).WithError(err).Error("Failed to fetch combination")
		return nil, nil, err
	}

	var members []model.FilterSuggestion
	if len(combo.FilterIDs) > 0 {
		if err := r.db.WithContext(ctx).
			Where("id IN ?", combo.FilterIDs).
			Find(&members).Error; err != nil {
			return nil, nil, err
		}
	}

	byID := make(map[uint]model.FilterSuggestion, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	ordered := make([]model.FilterSuggestion, 0, len(combo.FilterIDs))
	for _, fid := range combo.FilterIDs {
		if m, ok := byID[fid]; ok {
			ordered = append(ordered, m)
		}
	}

	return &combo, ordered, nil
}

// RecentBestCombinations returns the winning combinations of the last k
// completed runs, newest first. Used for cross-run consistency tracking.
func (r *FilterRepository) RecentBestCombinations(ctx context.Context, k int) ([]model.FilterCombination, error) {
	if k <= 0 {
		k = 10
	}

	var runs []model.MiningRun
	err := r.db.WithContext(ctx).
		Where("status = ? AND best_combination_id IS NOT NULL", model.MiningRunStatusCompleted).
		Order("started_at DESC").
		Limit(k).
		Find(&runs).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "RecentBestCombinations",
			"k":    k,
		}).WithError(err).Error("Failed to fetch recent runs")
		return nil, err
	}

	ids := make([]uint, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, *run.BestCombinationID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var combos []model.FilterCombination
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&combos).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]model.FilterCombination, len(combos))
	for _, c := range combos {
		byID[c.ID] = c
	}

	// keep run order, newest first
	ordered := make([]model.FilterCombination, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}

	return ordered, nil
}

// SuggestionsByIDs loads suggestions for consistency computation.
func (r *FilterRepository) SuggestionsByIDs(ctx context.Context, ids []uint) ([]model.FilterSuggestion, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var out []model.FilterSuggestion
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FilterRepository",
			"op":   "SuggestionsByIDs",
			"ids":  len(ids),
		}).WithError(err).Error("Failed to fetch suggestions")
		return nil, err
	}

	return out, nil
}

// ListRuns returns recent mining runs for the API, newest first.
func (r *FilterRepository) ListRuns(ctx context.Context, limit int) ([]model.MiningRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var out []model.MiningRun
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "FilterRepository",
			"op":    "ListRuns",
			"limit": limit,
		}).WithError(err).Error("Failed to list mining runs")
		return nil, err
	}

	return out, nil
}
