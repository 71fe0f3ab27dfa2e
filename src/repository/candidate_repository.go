package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// CandidateRepository handles persistence of trade candidates.
type CandidateRepository struct {
	db *gorm.DB
}

// NewCandidateRepository creates a new repository instance bound to MainDB.
func NewCandidateRepository() *CandidateRepository {
	return &CandidateRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *CandidateRepository) WithDB(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Create inserts a new trade candidate in status open.
func (r *CandidateRepository) Create(ctx context.Context, c *model.TradeCandidate) error {
	if c.Status == "" {
		c.Status = model.CandidateStatusOpen
	}

	err := r.db.WithContext(ctx).Create(c).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CandidateRepository",
			"op":   "Create",
			"pair": c.Pair,
		}).WithError(err).Error("Failed to create trade candidate")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "CandidateRepository",
		"op":        "Create",
		"id":        c.ID,
		"pair":      c.Pair,
		"signal_ts": c.SignalTs,
	}).Info("Trade candidate created")

	return nil
}

// FindByID fetches a single candidate by primary key.
// Returns (nil, nil) if not found.
func (r *CandidateRepository) FindByID(ctx context.Context, id uint) (*model.TradeCandidate, error) {
	var c model.TradeCandidate

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // not found is not an error
		}

		logger.WithFields(map[string]interface{}{
			"repo": "CandidateRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trade candidate")

		return nil, err
	}

	return &c, nil
}

// SetDecision writes the gate/validator outcome onto the candidate. The full
// rationale goes into decision_reason as JSON so both accepted and rejected
// candidates can feed later mining.
func (r *CandidateRepository) SetDecision(
	ctx context.Context,
	id uint,
	decision string,
	reasonJSON string,
	ruleSetVersion string,
) error {

	updates := map[string]interface{}{
		"decision":         decision,
		"decision_reason":  reasonJSON,
		"rule_set_version": ruleSetVersion,
	}
	// a rejected signal never opens a position, the row is terminal right away
	if decision == model.DecisionNoGo {
		updates["status"] = model.CandidateStatusRejected
	}

	res := r.db.WithContext(ctx).
		Model(&model.TradeCandidate{}).
		Where("id = ?", id).
		Updates(updates)

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "CandidateRepository",
			"op":       "SetDecision",
			"id":       id,
			"decision": decision,
		}).WithError(res.Error).Error("Failed to set candidate decision")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "CandidateRepository",
		"op":       "SetDecision",
		"id":       id,
		"decision": decision,
		"ruleSet":  ruleSetVersion,
	}).Info("Candidate decision recorded")

	return nil
}

// FindOpenAccepted returns GO candidates still in status open, oldest first.
// The trail sampling loop uses this to work out which offsets are due.
func (r *CandidateRepository) FindOpenAccepted(ctx context.Context) ([]model.TradeCandidate, error) {
	var out []model.TradeCandidate

	err := r.db.WithContext(ctx).
		Where("status = ? AND decision = ?", model.CandidateStatusOpen, model.DecisionGo).
		Order("signal_ts ASC").
		Find(&out).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CandidateRepository",
			"op":   "FindOpenAccepted",
		}).WithError(err).Error("Failed to fetch open candidates")
		return nil, err
	}

	return out, nil
}

// ErrAlreadyResolved is returned by CloseWithOutcome when the candidate has
// already reached a terminal status. Callers treat it as a no-op signal, not
// a failure: two closers racing on the same candidate is an expected event.
var ErrAlreadyResolved = errors.New("candidate already resolved")

// CloseWithOutcome transitions a single candidate to a terminal status and
// attaches the realized outcome plus the immutable good/bad label. The row is
// locked for the duration of the transaction so concurrent closers serialize;
// the first writer wins and every later attempt gets ErrAlreadyResolved.
func (r *CandidateRepository) CloseWithOutcome(
	ctx context.Context,
	id uint,
	status string,
	realizedGainPct float64,
	maxFavorablePct float64,
	goodTradeThresholdPct float64,
	closedAt time.Time,
) error {

	switch status {
	case model.CandidateStatusClosed, model.CandidateStatusCancelled, model.CandidateStatusMissed:
	default:
		return fmt.Errorf("invalid terminal status %q", status)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.TradeCandidate
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&c).Error; err != nil {
			return err
		}

		if c.IsTerminal() {
			return ErrAlreadyResolved
		}

		label := model.LabelFor(realizedGainPct, goodTradeThresholdPct)

		return tx.Model(&c).Updates(map[string]interface{}{
			"status":            status,
			"realized_gain_pct": realizedGainPct,
			"max_favorable_pct": maxFavorablePct,
			"label":             label,
			"closed_at":         closedAt,
		}).Error
	})

	if err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			logger.WithFields(map[string]interface{}{
				"repo": "CandidateRepository",
				"op":   "CloseWithOutcome",
				"id":   id,
			}).Warn("Candidate already resolved, skipping close")
			return err
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "CandidateRepository",
			"op":     "CloseWithOutcome",
			"id":     id,
			"status": status,
		}).WithError(err).Error("Failed to close candidate")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":            "CandidateRepository",
		"op":              "CloseWithOutcome",
		"id":              id,
		"status":          status,
		"realizedGainPct": realizedGainPct,
		"maxFavorablePct": maxFavorablePct,
	}).Info("Candidate resolved")

	return nil
}

// FindResolvedBetween returns candidates that reached a terminal status with
// a recorded outcome inside the given window, the filter miner's input set.
func (r *CandidateRepository) FindResolvedBetween(
	ctx context.Context,
	from, to time.Time,
) ([]model.TradeCandidate, error) {

	var out []model.TradeCandidate

	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			model.CandidateStatusClosed,
			model.CandidateStatusCancelled,
			model.CandidateStatusMissed,
		}).
		Where("realized_gain_pct IS NOT NULL").
		Where("closed_at >= ? AND closed_at < ?", from, to).
		Order("closed_at ASC").
		Find(&out).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CandidateRepository",
			"op":   "FindResolvedBetween",
			"from": from,
			"to":   to,
		}).WithError(err).Error("Failed to fetch resolved candidates")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "CandidateRepository",
		"op":          "FindResolvedBetween",
		"from":        from,
		"to":          to,
		"rows_return": len(out),
	}).Debug("Resolved candidates fetched")

	return out, nil
}

// ListRecent returns the latest candidates for the API, newest first.
func (r *CandidateRepository) ListRecent(ctx context.Context, limit int) ([]model.TradeCandidate, error) {
	if limit <= 0 {
		limit = 50 // default safety limit
	}

	var out []model.TradeCandidate
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "CandidateRepository",
			"op":    "ListRecent",
			"limit": limit,
		}).WithError(err).Error("Failed to list candidates")
		return nil, err
	}

	return out, nil
}
