package miner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
)

// buildRows fabricates labeled trail rows for one column/offset from two
// value vectors.
func buildRows(column string, offset int, good, bad []float64) ([]repository.LabeledRow, map[uint]string) {
	rows := make([]repository.LabeledRow, 0, len(good)+len(bad))
	labels := map[uint]string{}

	id := uint(1)
	for _, v := range good {
		value := v
		rows = append(rows, repository.LabeledRow{
			CandidateID: id, MinuteOffset: offset, ColumnName: column, Value: &value,
		})
		labels[id] = model.LabelGood
		id++
	}
	for _, v := range bad {
		value := v
		rows = append(rows, repository.LabeledRow{
			CandidateID: id, MinuteOffset: offset, ColumnName: column, Value: &value,
		})
		labels[id] = model.LabelBad
		id++
	}
	return rows, labels
}

func TestBuildDataset_DropsNullCellsNotCandidates(t *testing.T) {
	v1, v2 := 1.0, 2.0
	rows := []repository.LabeledRow{
		{CandidateID: 1, MinuteOffset: 0, ColumnName: "volatility_pct", Value: &v1},
		{CandidateID: 1, MinuteOffset: 1, ColumnName: "volatility_pct", Value: nil},
		{CandidateID: 1, MinuteOffset: 0, ColumnName: "book_imbalance", Value: &v2},
	}
	labels := map[uint]string{1: model.LabelGood}

	ds := BuildDataset(rows, labels)

	require.Len(t, ds.Candidates, 1)
	assert.Len(t, ds.Candidates[0].Values, 2)
	assert.Contains(t, ds.Series, ColumnKey{Column: "volatility_pct", Offset: 0})
	assert.NotContains(t, ds.Series, ColumnKey{Column: "volatility_pct", Offset: 1})
}

func TestSeriesEligible(t *testing.T) {
	flat := &Series{Good: []float64{1, 1, 1, 1, 1}, Bad: []float64{0, 0, 0, 0, 0}}
	assert.False(t, flat.Eligible(5), "zero spread among good values is not mineable")

	thin := &Series{Good: []float64{1, 2}, Bad: []float64{0, 0, 0, 0, 0}}
	assert.False(t, thin.Eligible(5))

	ok := &Series{Good: []float64{1, 2, 3, 4, 5}, Bad: []float64{0, 0, 0, 0, 9}}
	assert.True(t, ok.Eligible(5))
}

func TestSearchSingles_SeparableColumn(t *testing.T) {
	// good trades cluster in [0.2, 0.4], bad trades sit well below
	good := []float64{0.20, 0.22, 0.25, 0.30, 0.35, 0.40}
	bad := []float64{0.01, 0.02, 0.05, 0.08, 0.10}
	rows, labels := buildRows("volatility_pct", 0, good, bad)

	ds := BuildDataset(rows, labels)
	ranked := SearchSingles(ds, 60, 5)

	require.Len(t, ranked, 1)
	best := ranked[0]
	assert.Equal(t, "volatility_pct", best.Column)
	assert.Equal(t, 0, best.Offset)
	assert.GreaterOrEqual(t, best.GoodKeptPct, 60.0)
	assert.Equal(t, 100.0, best.BadRemovedPct)
	assert.Greater(t, best.FromValue, 0.10, "range must exclude the bad cluster")
}

func TestSearchSingles_RespectsGoodKeptFloor(t *testing.T) {
	good := []float64{0.20, 0.22, 0.25, 0.30, 0.35, 0.40}
	bad := []float64{0.01, 0.02, 0.05, 0.08, 0.10}
	rows, labels := buildRows("volatility_pct", 0, good, bad)
	ds := BuildDataset(rows, labels)

	for _, s := range SearchSingles(ds, 90, 5) {
		assert.GreaterOrEqual(t, s.GoodKeptPct, 90.0)
	}
}

func TestSearchSingles_Deterministic(t *testing.T) {
	goodA := []float64{0.20, 0.22, 0.25, 0.30, 0.35, 0.40}
	badA := []float64{0.01, 0.02, 0.05, 0.08, 0.10}
	rowsA, labels := buildRows("volatility_pct", 0, goodA, badA)

	rowsB, labelsB := buildRows("book_imbalance", 1, []float64{1, 2, 3, 4, 5, 6}, []float64{-3, -2, -1, 0, 0.5})
	for id, l := range labelsB {
		labels[id+100] = l
	}
	for i := range rowsB {
		rowsB[i].CandidateID += 100
	}

	rows := append(rowsA, rowsB...)

	var first []Single
	for i := 0; i < 5; i++ {
		ds := BuildDataset(rows, labels)
		ranked := SearchSingles(ds, 60, 5)
		if i == 0 {
			first = ranked
			continue
		}
		require.Equal(t, first, ranked, fmt.Sprintf("run %d diverged", i))
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, quantile(sorted, 0))
	assert.Equal(t, 5.0, quantile(sorted, 1))
	assert.Equal(t, 3.0, quantile(sorted, 0.5))
	assert.InDelta(t, 1.2, quantile(sorted, 0.05), 1e-9)
}
