package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// WhaleEventRepository handles persistence of confirmed on-chain events
// delivered through the webhook.
type WhaleEventRepository struct {
	db *gorm.DB
}

// NewWhaleEventRepository creates a new repository instance bound to MainDB.
func NewWhaleEventRepository() *WhaleEventRepository {
	return &WhaleEventRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *WhaleEventRepository) WithDB(db *gorm.DB) *WhaleEventRepository {
	return &WhaleEventRepository{db: db}
}

// InsertIdempotent stores an event. Delivery is at-least-once, so a conflict
// on the transaction signature is a silent no-op; the return value reports
// whether this delivery was the first one.
func (r *WhaleEventRepository) InsertIdempotent(ctx context.Context, evt *model.WhaleEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "signature"}},
			DoNothing: true,
		}).
		Create(evt)

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "WhaleEventRepository",
			"op":        "InsertIdempotent",
			"signature": evt.Signature,
		}).WithError(res.Error).Error("Failed to insert whale event")
		return false, res.Error
	}

	inserted := res.RowsAffected > 0

	logger.WithFields(map[string]interface{}{
		"repo":      "WhaleEventRepository",
		"op":        "InsertIdempotent",
		"signature": evt.Signature,
		"wallet":    evt.Wallet,
		"inserted":  inserted,
	}).Debug("Whale event processed")

	return inserted, nil
}

// FindBySignature fetches the stored event for a transaction signature.
// Returns (nil, nil) if the signature was never seen.
func (r *WhaleEventRepository) FindBySignature(ctx context.Context, signature string) (*model.WhaleEvent, error) {
	var evt model.WhaleEvent

	err := r.db.WithContext(ctx).
		Where("signature = ?", signature).
		First(&evt).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":      "WhaleEventRepository",
			"op":        "FindBySignature",
			"signature": signature,
		}).WithError(err).Error("Failed to fetch whale event")
		return nil, err
	}

	return &evt, nil
}

// LinkCandidate marks the event as fully processed by attaching the decided
// candidate. Redeliveries of a linked signature are true duplicates.
func (r *WhaleEventRepository) LinkCandidate(ctx context.Context, eventID, candidateID uint) error {
	err := r.db.WithContext(ctx).
		Model(&model.WhaleEvent{}).
		Where("id = ?", eventID).
		Update("candidate_id", candidateID).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "WhaleEventRepository",
			"op":        "LinkCandidate",
			"event":     eventID,
			"candidate": candidateID,
		}).WithError(err).Error("Failed to link candidate to whale event")
		return err
	}

	return nil
}

// ActivityStats aggregates recent on-chain activity for a pair, the raw
// material of the whale feature section.
type ActivityStats struct {
	Buys         int64
	Sells        int64
	NetVolumeUsd float64
	GoatActive   bool
}

// ActivityWindow aggregates events for a pair over the closing window before
// asOf. goatWallet marks whether the followed wallet itself traded.
func (r *WhaleEventRepository) ActivityWindow(
	ctx context.Context,
	pair string,
	goatWallet string,
	asOf time.Time,
	window time.Duration,
) (*ActivityStats, error) {

	from := asOf.Add(-window)
	stats := &ActivityStats{}

	var rows []model.WhaleEvent
	err := r.db.WithContext(ctx).
		Where("pair = ? AND block_time > ? AND block_time <= ?", pair, from, asOf).
		Find(&rows).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "WhaleEventRepository",
			"op":   "ActivityWindow",
			"pair": pair,
			"asOf": asOf,
		}).WithError(err).Error("Failed to aggregate whale activity")
		return nil, err
	}

	for _, evt := range rows {
		amount := evt.AmountUsd.InexactFloat64()
		switch evt.Side {
		case model.WhaleSideBuy:
			stats.Buys++
			stats.NetVolumeUsd += amount
		case model.WhaleSideSell:
			stats.Sells++
			stats.NetVolumeUsd -= amount
		}
		if goatWallet != "" && evt.Wallet == goatWallet {
			stats.GoatActive = true
		}
	}

	return stats, nil
}
