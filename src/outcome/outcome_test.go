package outcome

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tk(minute int, price string) model.PriceTick {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return model.PriceTick{
		Symbol:   "GOAT",
		Datetime: base.Add(time.Duration(minute) * time.Minute),
		Price:    d(price),
	}
}

func TestFromTicks_PeakAboveClose(t *testing.T) {
	// entry 100, peak 102 (+2%), close 100.8 (+0.8%)
	ticks := []model.PriceTick{
		tk(1, "100.5"),
		tk(2, "102"),
		tk(3, "101"),
		tk(4, "100.8"),
	}

	final, favorable, err := FromTicks(d("100"), ticks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final != 0.8 {
		t.Fatalf("final gain: want 0.8 got %v", final)
	}
	if favorable != 2.0 {
		t.Fatalf("max favorable: want 2.0 got %v", favorable)
	}
}

func TestFromTicks_OnlyDownhill(t *testing.T) {
	ticks := []model.PriceTick{
		tk(1, "99"),
		tk(2, "98"),
	}

	final, favorable, err := FromTicks(d("100"), ticks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final != -2.0 {
		t.Fatalf("final gain: want -2.0 got %v", final)
	}
	if favorable != 0 {
		t.Fatalf("max favorable excursion clamps at zero, got %v", favorable)
	}
}

func TestFromTicks_Errors(t *testing.T) {
	if _, _, err := FromTicks(decimal.Zero, []model.PriceTick{tk(1, "1")}); err != ErrNoEntryPrice {
		t.Fatalf("expected ErrNoEntryPrice, got %v", err)
	}
	if _, _, err := FromTicks(d("100"), nil); err != ErrNoTicks {
		t.Fatalf("expected ErrNoTicks, got %v", err)
	}
}

func TestFromClose_PeakNeverBelowClose(t *testing.T) {
	// tracked path never saw the close price; peak clamps up to close
	ticks := []model.PriceTick{
		tk(1, "100.2"),
		tk(2, "100.4"),
	}

	final, favorable, err := FromClose(d("100"), d("101"), ticks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final != 1.0 {
		t.Fatalf("final gain: want 1.0 got %v", final)
	}
	if favorable != 1.0 {
		t.Fatalf("favorable should clamp to close gain, got %v", favorable)
	}
}
