package outcome

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

var (
	ErrNoEntryPrice = errors.New("entry price must be positive")
	ErrNoTicks      = errors.New("no price ticks in the tracking window")
)

var hundred = decimal.NewFromInt(100)

// GainPct is the percent change from entry to price.
func GainPct(entry, price decimal.Decimal) decimal.Decimal {
	return price.Sub(entry).Div(entry).Mul(hundred)
}

// FromTicks computes the realized outcome of a candidate from the price path
// between entry and close:
//
//   - final gain %: entry to the last tick
//   - max favorable excursion %: entry to the best price seen on the way,
//     never below zero (a trade that only went down has 0 favorable excursion)
func FromTicks(entryPrice decimal.Decimal, ticks []model.PriceTick) (finalGainPct, maxFavorablePct float64, err error) {
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return 0, 0, ErrNoEntryPrice
	}
	if len(ticks) == 0 {
		return 0, 0, ErrNoTicks
	}

	peak := ticks[0].Price
	for _, tk := range ticks[1:] {
		if tk.Price.GreaterThan(peak) {
			peak = tk.Price
		}
	}

	final := GainPct(entryPrice, ticks[len(ticks)-1].Price)
	favorable := GainPct(entryPrice, peak)
	if favorable.IsNegative() {
		favorable = decimal.Zero
	}

	return final.InexactFloat64(), favorable.InexactFloat64(), nil
}

// FromClose computes the outcome when the executor reports an explicit close
// price, with the peak taken from the tracked price path. A peak below the
// close price is clamped up, the excursion can never be worse than the
// realized close.
func FromClose(entryPrice, closePrice decimal.Decimal, ticks []model.PriceTick) (finalGainPct, maxFavorablePct float64, err error) {
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return 0, 0, ErrNoEntryPrice
	}

	peak := closePrice
	for _, tk := range ticks {
		if tk.Price.GreaterThan(peak) {
			peak = tk.Price
		}
	}

	final := GainPct(entryPrice, closePrice)
	favorable := GainPct(entryPrice, peak)
	if favorable.IsNegative() {
		favorable = decimal.Zero
	}

	return final.InexactFloat64(), favorable.InexactFloat64(), nil
}
