package trail

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/features"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/outcome"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
)

type candidateStore interface {
	FindOpenAccepted(ctx context.Context) ([]model.TradeCandidate, error)
	CloseWithOutcome(ctx context.Context, id uint, status string, realizedGainPct, maxFavorablePct, goodTradeThresholdPct float64, closedAt time.Time) error
}

type snapshotStore interface {
	InsertSnapshots(ctx context.Context, rows []model.TrailSnapshot) error
	MaxRecordedOffset(ctx context.Context, candidateID uint) (int, error)
}

type tickStore interface {
	TicksBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceTick, error)
}

// Recorder captures periodic feature snapshots for accepted candidates over
// a fixed post-entry window and attaches the realized outcome on close.
type Recorder struct {
	candidates candidateStore
	snapshots  snapshotStore
	ticks      tickStore
	providers  []features.Provider
	cfg        Config
	now        func() time.Time
}

func NewRecorder(
	candidates candidateStore,
	snapshots snapshotStore,
	ticks tickStore,
	providers []features.Provider,
	cfg Config,
) *Recorder {
	if cfg.TrackingWindowMinutes <= 0 {
		cfg.TrackingWindowMinutes = 15
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 3 * time.Second
	}
	return &Recorder{
		candidates: candidates,
		snapshots:  snapshots,
		ticks:      ticks,
		providers:  providers,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock overrides the recorder's clock. Tests only.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// BeginTracking writes the minute-0 sample for a freshly accepted candidate.
// Later offsets are picked up by SampleDue on the sampling loop.
func (r *Recorder) BeginTracking(ctx context.Context, candidate *model.TradeCandidate) error {
	return r.Sample(ctx, candidate, 0)
}

// Sample collects every configured section once and writes the snapshot rows
// for one minute offset. Sections fail independently: a provider error nulls
// that section's columns only. The write is idempotent, re-sampling an
// already recorded (candidate, offset) changes nothing.
func (r *Recorder) Sample(ctx context.Context, candidate *model.TradeCandidate, minuteOffset int) error {
	asOf := candidate.SignalTs.Add(time.Duration(minuteOffset) * time.Minute)

	rows := make([]model.TrailSnapshot, 0, 16)
	for _, provider := range r.providers {
		values := r.collectSection(ctx, provider, candidate, asOf)

		for _, col := range provider.Columns() {
			row := model.TrailSnapshot{
				CandidateID:  candidate.ID,
				MinuteOffset: minuteOffset,
				ColumnName:   col,
				Section:      provider.Section(),
			}
			if values != nil {
				if v, ok := values[col]; ok {
					value := v
					row.Value = &value
				}
			}
			rows = append(rows, row)
		}
	}

	return r.snapshots.InsertSnapshots(ctx, rows)
}

func (r *Recorder) collectSection(
	ctx context.Context,
	provider features.Provider,
	candidate *model.TradeCandidate,
	asOf time.Time,
) map[string]float64 {

	sectionCtx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
	defer cancel()

	values, err := provider.Collect(sectionCtx, candidate, asOf)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "trail_recorder",
			"candidate": candidate.ID,
			"section":   provider.Section(),
			"asOf":      asOf,
		}).WithError(err).Warn("Section collection failed, nulling its columns")
		return nil
	}

	return values
}

// SampleDue walks all open accepted candidates and records every offset that
// has become due since the last sample. Candidates past the tracking window
// without a close are finalized as missed.
func (r *Recorder) SampleDue(ctx context.Context) error {
	candidates, err := r.candidates.FindOpenAccepted(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	for i := range candidates {
		candidate := &candidates[i]

		elapsed := int(now.Sub(candidate.SignalTs) / time.Minute)
		if elapsed < 0 {
			continue
		}

		lastOffset := r.cfg.TrackingWindowMinutes - 1
		if elapsed > lastOffset {
			r.finalizeMissed(ctx, candidate, now)
			continue
		}

		recorded, err := r.snapshots.MaxRecordedOffset(ctx, candidate.ID)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "trail_recorder",
				"candidate": candidate.ID,
			}).WithError(err).Error("Failed to read recorded offsets, skipping candidate this tick")
			continue
		}

		for offset := recorded + 1; offset <= elapsed && offset <= lastOffset; offset++ {
			if err := r.Sample(ctx, candidate, offset); err != nil {
				logger.WithFields(map[string]interface{}{
					"component": "trail_recorder",
					"candidate": candidate.ID,
					"offset":    offset,
				}).WithError(err).Error("Sample failed")
				break
			}
		}
	}

	return nil
}

// Finalize resolves a candidate with an executor-reported close price. The
// realized gain comes from the close price; the favorable excursion from the
// tracked price path.
func (r *Recorder) Finalize(
	ctx context.Context,
	candidate *model.TradeCandidate,
	status string,
	closePrice decimal.Decimal,
	closedAt time.Time,
) error {

	ticks, err := r.ticks.TicksBetween(ctx, candidate.Pair, candidate.SignalTs, closedAt)
	if err != nil {
		// price path is a bonus for the excursion metric; the close price
		// alone is enough to resolve the candidate
		logger.WithFields(map[string]interface{}{
			"component": "trail_recorder",
			"candidate": candidate.ID,
		}).WithError(err).Warn("Could not load price path for finalize")
		ticks = nil
	}

	finalGain, maxFavorable, err := outcome.FromClose(candidate.EntryPrice, closePrice, ticks)
	if err != nil {
		return err
	}

	err = r.candidates.CloseWithOutcome(ctx, candidate.ID, status, finalGain, maxFavorable, r.cfg.GoodTradeThresholdPct, closedAt)
	if errors.Is(err, repository.ErrAlreadyResolved) {
		return nil
	}
	return err
}

func (r *Recorder) finalizeMissed(ctx context.Context, candidate *model.TradeCandidate, now time.Time) {
	ticks, err := r.ticks.TicksBetween(ctx, candidate.Pair, candidate.SignalTs, now)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "trail_recorder",
			"candidate": candidate.ID,
		}).WithError(err).Error("Failed to load price path for missed candidate")
		return
	}

	finalGain, maxFavorable := 0.0, 0.0
	if computedGain, computedFav, err := outcome.FromTicks(candidate.EntryPrice, ticks); err == nil {
		finalGain, maxFavorable = computedGain, computedFav
	}

	err = r.candidates.CloseWithOutcome(ctx, candidate.ID, model.CandidateStatusMissed, finalGain, maxFavorable, r.cfg.GoodTradeThresholdPct, now)
	if err != nil && !errors.Is(err, repository.ErrAlreadyResolved) {
		logger.WithFields(map[string]interface{}{
			"component": "trail_recorder",
			"candidate": candidate.ID,
		}).WithError(err).Error("Failed to finalize missed candidate")
		return
	}

	logger.WithFields(map[string]interface{}{
		"component": "trail_recorder",
		"candidate": candidate.ID,
		"gain":      finalGain,
	}).Info("Tracking window elapsed without close, candidate marked missed")
}
