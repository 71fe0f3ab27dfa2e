package miner

import (
	"sort"
)

// Single is one mined single-column threshold range with its dataset stats.
type Single struct {
	Column        string
	Offset        int
	FromValue     float64
	ToValue       float64
	GoodKeptPct   float64
	BadRemovedPct float64
}

func (s Single) score() float64 {
	return s.BadRemovedPct + s.GoodKeptPct
}

// quantile bounds tried for the candidate ranges. Lower bounds come from the
// bottom of the good distribution, upper bounds from the top, so every tried
// range is anchored on where the good trades actually live.
var (
	lowerQuantiles = []float64{0, 0.05, 0.10, 0.20, 0.30}
	upperQuantiles = []float64{0.70, 0.80, 0.90, 0.95, 1}
)

// SearchSingles mines every eligible series for its best threshold range and
// returns the survivors ranked by score. Ranges that would keep fewer than
// goodKeptFloorPct of the good trades are rejected outright.
func SearchSingles(ds *Dataset, goodKeptFloorPct float64, minSamplesPerLabel int) []Single {
	out := make([]Single, 0, len(ds.Series))

	for key, series := range ds.Series {
		if !series.Eligible(minSamplesPerLabel) {
			continue
		}
		if best, ok := bestRangeFor(key, series, goodKeptFloorPct); ok {
			out = append(out, best)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score() != b.score() {
			return a.score() > b.score()
		}
		if a.BadRemovedPct != b.BadRemovedPct {
			return a.BadRemovedPct > b.BadRemovedPct
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.Column < b.Column
	})

	return out
}

func bestRangeFor(key ColumnKey, series *Series, goodKeptFloorPct float64) (Single, bool) {
	sortedGood := append([]float64(nil), series.Good...)
	sort.Float64s(sortedGood)

	var best Single
	found := false

	for _, lq := range lowerQuantiles {
		for _, uq := range upperQuantiles {
			from := quantile(sortedGood, lq)
			to := quantile(sortedGood, uq)
			if to < from {
				continue
			}

			goodKept := pctInside(series.Good, from, to)
			if goodKept < goodKeptFloorPct {
				continue
			}
			badRemoved := 100 - pctInside(series.Bad, from, to)

			candidate := Single{
				Column:        key.Column,
				Offset:        key.Offset,
				FromValue:     from,
				ToValue:       to,
				GoodKeptPct:   goodKept,
				BadRemovedPct: badRemoved,
			}

			if !found || candidate.score() > best.score() ||
				(candidate.score() == best.score() && candidate.BadRemovedPct > best.BadRemovedPct) {
				best = candidate
				found = true
			}
		}
	}

	return best, found
}

// quantile reads the q-th quantile from an already sorted slice using
// nearest-rank interpolation.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func pctInside(values []float64, from, to float64) float64 {
	if len(values) == 0 {
		return 0
	}
	inside := 0
	for _, v := range values {
		if v >= from && v <= to {
			inside++
		}
	}
	return float64(inside) / float64(len(values)) * 100
}
