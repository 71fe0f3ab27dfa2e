package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/features"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// Decision reasons emitted by the gate.
const (
	ReasonMomentumOK            = "MOMENTUM_OK"
	ReasonFallingOrWeakMomentum = "FALLING_OR_WEAK_MOMENTUM"
	ReasonNoPriceData           = "NO_PRICE_DATA"
	ReasonGateError             = "GATE_ERROR"
)

// ErrNoPriceData means the lookback window had no usable base tick.
var ErrNoPriceData = errors.New("insufficient price history for lookback window")

// Metrics carries the momentum readings of one evaluation. Sub-window values
// are nil when that sub-window had no base tick. The record is emitted for
// every evaluation, accepted or rejected, so later mining can learn from both.
type Metrics struct {
	Change1mPct       *float64 `json:"change_1m_pct,omitempty"`
	Change2mPct       *float64 `json:"change_2m_pct,omitempty"`
	ChangeLookbackPct *float64 `json:"change_lookback_pct,omitempty"`
	TicksSeen         int      `json:"ticks_seen"`
}

// Result is the gate's verdict for one candidate signal.
type Result struct {
	Decision string  `json:"decision"`
	Reason   string  `json:"reason"`
	Metrics  Metrics `json:"metrics"`
}

type exceptionSink interface {
	Record(ctx context.Context, module, method string, cause error, context_ map[string]interface{})
}

// Gate is the pre-entry momentum check, the first decision point on the
// trading path. It must answer within its timeout and it fails closed: any
// internal error, panic or timeout yields NO_GO with reason GATE_ERROR plus
// a persisted exception record.
type Gate struct {
	prices     features.PriceSource
	exceptions exceptionSink
	cfg        Config
}

func New(prices features.PriceSource, exceptions exceptionSink, cfg Config) *Gate {
	if cfg.LookbackMinutes <= 0 {
		cfg.LookbackMinutes = 3
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 2 * time.Second
	}
	return &Gate{prices: prices, exceptions: exceptions, cfg: cfg}
}

type evalOutcome struct {
	result Result
	err    error
}

// Evaluate decides GO/NO_GO for a candidate signal. It runs at most once per
// candidate; the validator enforces that.
func (g *Gate) Evaluate(
	ctx context.Context,
	signalTime time.Time,
	entryPrice decimal.Decimal,
	pair string,
) Result {

	evalCtx, cancel := context.WithTimeout(ctx, g.cfg.EvalTimeout)
	defer cancel()

	done := make(chan evalOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalOutcome{err: fmt.Errorf("gate panic: %v", r)}
			}
		}()
		res, err := g.evaluate(evalCtx, signalTime, pair)
		done <- evalOutcome{result: res, err: err}
	}()

	var out evalOutcome
	select {
	case out = <-done:
	case <-evalCtx.Done():
		out = evalOutcome{err: fmt.Errorf("gate evaluation timed out: %w", evalCtx.Err())}
	}

	if out.err != nil {
		if errors.Is(out.err, ErrNoPriceData) {
			return g.noDataResult(pair, out.result.Metrics)
		}

		logger.WithFields(map[string]interface{}{
			"component": "pre_entry_gate",
			"pair":      pair,
			"signal_ts": signalTime,
		}).WithError(out.err).Error("Gate evaluation failed, failing closed")

		// record on the parent context, evalCtx may be the thing that expired
		g.exceptions.Record(ctx, "gate", "Evaluate", out.err, map[string]interface{}{
			"pair":      pair,
			"signal_ts": signalTime,
		})

		return Result{
			Decision: model.DecisionNoGo,
			Reason:   ReasonGateError,
			Metrics:  out.result.Metrics,
		}
	}

	g.logResult(pair, signalTime, out.result)
	return out.result
}

func (g *Gate) evaluate(ctx context.Context, signalTime time.Time, pair string) (Result, error) {
	lookback := time.Duration(g.cfg.LookbackMinutes) * time.Minute

	ticks, err := g.prices.RecentPrices(ctx, pair, signalTime, lookback+time.Minute)
	if err != nil {
		return Result{}, fmt.Errorf("load price history: %w", err)
	}

	metrics := Metrics{TicksSeen: len(ticks)}
	if len(ticks) < 2 {
		return Result{Metrics: metrics}, ErrNoPriceData
	}

	latest := ticks[len(ticks)-1].Price.InexactFloat64()

	metrics.Change1mPct = changeOver(ticks, signalTime, 1*time.Minute, latest)
	metrics.Change2mPct = changeOver(ticks, signalTime, 2*time.Minute, latest)
	metrics.ChangeLookbackPct = changeOver(ticks, signalTime, lookback, latest)

	if metrics.ChangeLookbackPct == nil {
		return Result{Metrics: metrics}, ErrNoPriceData
	}

	if *metrics.ChangeLookbackPct < g.cfg.MinMomentumPct {
		return Result{
			Decision: model.DecisionNoGo,
			Reason:   ReasonFallingOrWeakMomentum,
			Metrics:  metrics,
		}, nil
	}

	return Result{
		Decision: model.DecisionGo,
		Reason:   ReasonMomentumOK,
		Metrics:  metrics,
	}, nil
}

func (g *Gate) noDataResult(pair string, metrics Metrics) Result {
	decision := model.DecisionGo
	if g.cfg.NoDataPolicy == NoDataReject {
		decision = model.DecisionNoGo
	}

	logger.WithFields(map[string]interface{}{
		"component": "pre_entry_gate",
		"pair":      pair,
		"policy":    g.cfg.NoDataPolicy,
		"decision":  decision,
	}).Warn("No usable price history for momentum check")

	return Result{
		Decision: decision,
		Reason:   ReasonNoPriceData,
		Metrics:  metrics,
	}
}

func (g *Gate) logResult(pair string, signalTime time.Time, res Result) {
	fields := map[string]interface{}{
		"component": "pre_entry_gate",
		"pair":      pair,
		"signal_ts": signalTime,
		"decision":  res.Decision,
		"reason":    res.Reason,
		"ticksSeen": res.Metrics.TicksSeen,
	}
	if res.Metrics.ChangeLookbackPct != nil {
		fields["changeLookbackPct"] = *res.Metrics.ChangeLookbackPct
	}
	if res.Metrics.Change1mPct != nil {
		fields["change1mPct"] = *res.Metrics.Change1mPct
	}

	logger.WithFields(fields).Info("Gate evaluated")
}

// changeOver computes the percent change from the last tick at or before
// (signalTime - window) to the latest price. Ascending ticks.
func changeOver(ticks []model.PriceTick, signalTime time.Time, window time.Duration, latest float64) *float64 {
	cutoff := signalTime.Add(-window)
	for i := len(ticks) - 1; i >= 0; i-- {
		if !ticks[i].Datetime.After(cutoff) {
			base := ticks[i].Price.InexactFloat64()
			if base == 0 {
				return nil
			}
			change := (latest - base) / base * 100
			return &change
		}
	}
	return nil
}
