package validator

import (
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// ConditionalFilterSet is one project's active combination resolved into its
// member filters, ready to evaluate against a minute snapshot.
type ConditionalFilterSet struct {
	ProjectID     uint
	ProjectName   string
	CombinationID uint
	MinuteOffset  int
	Filters       []model.FilterSuggestion
}

// FilterCheck is the audit record of one member filter against one value.
type FilterCheck struct {
	Column    string   `json:"column"`
	FromValue float64  `json:"from_value"`
	ToValue   float64  `json:"to_value"`
	Value     *float64 `json:"value"`
	Passed    bool     `json:"passed"`
}

// ProjectResult is one project's verdict with the full per-filter breakdown.
type ProjectResult struct {
	ProjectID     uint          `json:"project_id"`
	ProjectName   string        `json:"project_name"`
	CombinationID uint          `json:"combination_id"`
	MinuteOffset  int           `json:"minute_offset"`
	Passed        bool          `json:"passed"`
	Checks        []FilterCheck `json:"checks"`
}

// Evaluate applies every member filter to the snapshot values. Members are
// ANDed; a missing or null value fails its filter. Evaluation never short
// circuits so the rationale always carries every check.
func (s *ConditionalFilterSet) Evaluate(values map[string]*float64) ProjectResult {
	result := ProjectResult{
		ProjectID:     s.ProjectID,
		ProjectName:   s.ProjectName,
		CombinationID: s.CombinationID,
		MinuteOffset:  s.MinuteOffset,
		Passed:        true,
	}

	for _, f := range s.Filters {
		check := FilterCheck{
			Column:    f.ColumnName,
			FromValue: f.FromValue,
			ToValue:   f.ToValue,
		}

		if v, ok := values[f.ColumnName]; ok && v != nil {
			check.Value = v
			check.Passed = *v >= f.FromValue && *v <= f.ToValue
		}

		if !check.Passed {
			result.Passed = false
		}
		result.Checks = append(result.Checks, check)
	}

	return result
}
