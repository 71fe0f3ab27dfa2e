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

// PriceRepository handles persistence and lookup of spot price ticks.
type PriceRepository struct {
	db *gorm.DB
}

// NewPriceRepository creates a new repository instance bound to MainDB.
func NewPriceRepository() *PriceRepository {
	return &PriceRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PriceRepository) WithDB(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// UpsertTicks writes price observations. On conflict on (symbol, datetime)
// the stored price and volume are refreshed, so feeds can safely re-deliver.
func (r *PriceRepository) UpsertTicks(ctx context.Context, ticks []model.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "volume"}),
		}).
		Create(&ticks).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PriceRepository",
			"op":     "UpsertTicks",
			"symbol": ticks[0].Symbol,
			"rows":   len(ticks),
		}).WithError(err).Error("Failed to upsert price ticks")
		return err
	}

	return nil
}

// RecentPrices returns ticks for a symbol inside the window ending at until,
// oldest first.
func (r *PriceRepository) RecentPrices(
	ctx context.Context,
	symbol string,
	until time.Time,
	window time.Duration,
) ([]model.PriceTick, error) {

	var desc []model.PriceTick
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND datetime > ? AND datetime <= ?", symbol, until.Add(-window), until).
		Order("datetime DESC").
		Find(&desc).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PriceRepository",
			"op":     "RecentPrices",
			"symbol": symbol,
			"until":  until,
		}).WithError(err).Error("Failed to fetch recent prices")
		return nil, err
	}

	// reverse to ascending for the callers doing window math
	asc := make([]model.PriceTick, len(desc))
	for i := range desc {
		asc[len(desc)-1-i] = desc[i]
	}

	return asc, nil
}

// LatestPrice returns the newest tick for a symbol.
// Returns (nil, nil) if the symbol has no ticks yet.
func (r *PriceRepository) LatestPrice(ctx context.Context, symbol string) (*model.PriceTick, error) {
	var tick model.PriceTick
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("datetime DESC").
		First(&tick).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "PriceRepository",
			"op":     "LatestPrice",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch latest price")
		return nil, err
	}

	return &tick, nil
}

// TicksBetween returns ticks inside (from, to], oldest first. The outcome
// computation uses this to find the peak favorable excursion.
func (r *PriceRepository) TicksBetween(
	ctx context.Context,
	symbol string,
	from, to time.Time,
) ([]model.PriceTick, error) {

	var out []model.PriceTick
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND datetime > ? AND datetime <= ?", symbol, from, to).
		Order("datetime ASC").
		Find(&out).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PriceRepository",
			"op":     "TicksBetween",
			"symbol": symbol,
			"from":   from,
			"to":     to,
		}).WithError(err).Error("Failed to fetch ticks between")
		return nil, err
	}

	return out, nil
}
