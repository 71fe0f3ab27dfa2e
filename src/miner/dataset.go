package miner

import (
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
)

// ColumnKey identifies one mineable series: a trail column at one offset.
type ColumnKey struct {
	Column string
	Offset int
}

// Series holds the value vectors of one column/offset split by label.
type Series struct {
	Good []float64
	Bad  []float64
}

// CandidateValues is one candidate's flattened trail, used to evaluate
// combinations at the candidate level.
type CandidateValues struct {
	ID     uint
	Label  string
	Values map[ColumnKey]float64
}

// Dataset is the miner's in-memory view of one analysis window.
type Dataset struct {
	Candidates []CandidateValues
	Series     map[ColumnKey]*Series
}

// BuildDataset assembles labeled trail rows into per-column series and
// per-candidate value maps. Null values are dropped per cell, not per
// candidate: a candidate with a gap at one offset still contributes every
// column it does have.
func BuildDataset(rows []repository.LabeledRow, labels map[uint]string) *Dataset {
	ds := &Dataset{
		Series: make(map[ColumnKey]*Series),
	}

	byCandidate := make(map[uint]*CandidateValues)
	order := make([]uint, 0)

	for _, row := range rows {
		label, ok := labels[row.CandidateID]
		if !ok || row.Value == nil {
			continue
		}

		key := ColumnKey{Column: row.ColumnName, Offset: row.MinuteOffset}

		series := ds.Series[key]
		if series == nil {
			series = &Series{}
			ds.Series[key] = series
		}
		if label == model.LabelGood {
			series.Good = append(series.Good, *row.Value)
		} else {
			series.Bad = append(series.Bad, *row.Value)
		}

		candidate := byCandidate[row.CandidateID]
		if candidate == nil {
			candidate = &CandidateValues{
				ID:     row.CandidateID,
				Label:  label,
				Values: make(map[ColumnKey]float64),
			}
			byCandidate[row.CandidateID] = candidate
			order = append(order, row.CandidateID)
		}
		candidate.Values[key] = *row.Value
	}

	ds.Candidates = make([]CandidateValues, 0, len(order))
	for _, id := range order {
		ds.Candidates = append(ds.Candidates, *byCandidate[id])
	}

	return ds
}

// Eligible reports whether a series carries enough signal to mine: minimum
// sample counts on both labels and a non-degenerate spread among the good
// values.
func (s *Series) Eligible(minSamplesPerLabel int) bool {
	if len(s.Good) < minSamplesPerLabel || len(s.Bad) < minSamplesPerLabel {
		return false
	}

	lo, hi := s.Good[0], s.Good[0]
	for _, v := range s.Good[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi > lo
}
