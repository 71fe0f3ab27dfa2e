package miner

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
)

type candidateSource interface {
	FindResolvedBetween(ctx context.Context, from, to time.Time) ([]model.TradeCandidate, error)
}

type trailSource interface {
	LoadLabeledRows(ctx context.Context, candidateIDs []uint) ([]repository.LabeledRow, error)
}

type filterStore interface {
	CreateMiningRun(ctx context.Context, run *model.MiningRun) error
	CompleteMiningRun(ctx context.Context, runID uint, totalFiltersAnalyzed, candidatesAnalyzed int, bestCombinationID *uint) error
	FailMiningRun(ctx context.Context, runID uint, cause string) error
	SaveSuggestions(ctx context.Context, rows []model.FilterSuggestion) error
	SaveCombination(ctx context.Context, combo *model.FilterCombination) error
	EnabledProjects(ctx context.Context) ([]model.FilterProject, error)
	ActivateCombination(ctx context.Context, projectID, combinationID uint) error
	RecentBestCombinations(ctx context.Context, k int) ([]model.FilterCombination, error)
	SuggestionsByIDs(ctx context.Context, ids []uint) ([]model.FilterSuggestion, error)
}

// Runner executes mining cycles against committed history. It reads from the
// candidate and trail stores and writes only to the filter tables; the live
// trading path is never locked and a failed run leaves the previously active
// combinations in place.
type Runner struct {
	candidates candidateSource
	trails     trailSource
	filters    filterStore
	cfg        Config
	now        func() time.Time
}

func NewRunner(candidates candidateSource, trails trailSource, filters filterStore, cfg Config) *Runner {
	if cfg.MaxComboSize < 1 {
		cfg.MaxComboSize = 1
	}
	if cfg.MinFiltersInCombo < 1 {
		cfg.MinFiltersInCombo = 1
	}
	return &Runner{
		candidates: candidates,
		trails:     trails,
		filters:    filters,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock overrides the runner's clock. Tests only.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunMiningCycle performs one full mining pass: select resolved candidates
// in the analysis window, mine single-column ranges, grow the best
// combination and point every enabled project at it. Only candidates that
// resolved strictly before the run started are admitted, so a candidate
// closing mid-run can never be scored by the rule set it helped produce.
func (r *Runner) RunMiningCycle(ctx context.Context) (*model.MiningRun, error) {
	startedAt := r.now().UTC()

	run := &model.MiningRun{StartedAt: startedAt}
	if err := r.filters.CreateMiningRun(ctx, run); err != nil {
		return nil, err
	}

	log := logger.WithFields(map[string]interface{}{
		"component": "miner",
		"run_id":    run.ID,
	})

	result, err := r.mine(ctx, run, startedAt)
	if err != nil {
		log.WithError(err).Error("Mining cycle failed")
		if failErr := r.filters.FailMiningRun(ctx, run.ID, err.Error()); failErr != nil {
			log.WithError(failErr).Error("Could not record run failure")
		}
		run.Status = model.MiningRunStatusFailed
		run.Error = err.Error()
		return run, err
	}

	if err := r.filters.CompleteMiningRun(ctx, run.ID, result.totalFilters, result.candidatesAnalyzed, result.bestCombinationID); err != nil {
		return nil, err
	}
	run.Status = model.MiningRunStatusCompleted
	run.TotalFiltersAnalyzed = result.totalFilters
	run.CandidatesAnalyzed = result.candidatesAnalyzed
	run.BestCombinationID = result.bestCombinationID

	log.WithFields(map[string]interface{}{
		"candidates": result.candidatesAnalyzed,
		"filters":    result.totalFilters,
		"combo":      result.bestCombinationID,
		"elapsed":    time.Since(startedAt).String(),
	}).Info("Mining cycle completed")

	r.reportConsistency(ctx, log)

	return run, nil
}

type mineResult struct {
	totalFilters       int
	candidatesAnalyzed int
	bestCombinationID  *uint
}

func (r *Runner) mine(ctx context.Context, run *model.MiningRun, startedAt time.Time) (*mineResult, error) {
	windowStart := startedAt.Add(-time.Duration(r.cfg.AnalysisWindowHours) * time.Hour)

	candidates, err := r.candidates.FindResolvedBetween(ctx, windowStart, startedAt)
	if err != nil {
		return nil, err
	}

	labels := LabelCandidates(candidates, r.cfg.GoodTradeThresholdPct)
	if len(labels) == 0 {
		logger.WithFields(map[string]interface{}{
			"component": "miner",
			"run_id":    run.ID,
			"window":    r.cfg.AnalysisWindowHours,
		}).Info("No resolved candidates in window, nothing to mine")
		return &mineResult{}, nil
	}

	ids := make([]uint, 0, len(labels))
	for id := range labels {
		ids = append(ids, id)
	}

	rows, err := r.trails.LoadLabeledRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	ds := BuildDataset(rows, labels)
	ranked := SearchSingles(ds, r.cfg.GoodKeptFloorPct, r.cfg.MinSamplesPerLabel)

	result := &mineResult{
		totalFilters:       len(ranked),
		candidatesAnalyzed: len(ds.Candidates),
	}
	if len(ranked) == 0 {
		return result, nil
	}

	projects, err := r.filters.EnabledProjects(ctx)
	if err != nil {
		return nil, err
	}

	// one combination per evaluation offset in use: each project only ever
	// receives a rule set minable at the offset it reads
	offsets := make([]int, 0, 1)
	seenOffset := map[int]bool{}
	for _, project := range projects {
		if !seenOffset[project.EvalMinuteOffset] {
			seenOffset[project.EvalMinuteOffset] = true
			offsets = append(offsets, project.EvalMinuteOffset)
		}
	}
	if len(offsets) == 0 {
		// no projects to serve, still record the overall winner for the run
		offsets = append(offsets, ranked[0].Offset)
	}

	combos := make(map[int]Combo, len(offsets))
	for _, offset := range offsets {
		combo, ok := BuildCombinationAt(ds, ranked, offset, r.cfg.TopK, r.cfg.MinFiltersInCombo, r.cfg.MaxComboSize, r.cfg.GoodKeptFloorPct, r.cfg.MinImprovementPct)
		if ok {
			combos[offset] = combo
		}
	}

	topK := r.cfg.TopK
	if topK <= 0 || topK > len(ranked) {
		topK = len(ranked)
	}

	suggestions := make([]model.FilterSuggestion, 0, topK)
	seenSingle := map[ColumnKey]bool{}
	appendSuggestion := func(s Single) {
		key := ColumnKey{Column: s.Column, Offset: s.Offset}
		if seenSingle[key] {
			return
		}
		seenSingle[key] = true
		suggestions = append(suggestions, model.FilterSuggestion{
			ColumnName:    s.Column,
			MinuteOffset:  s.Offset,
			FromValue:     s.FromValue,
			ToValue:       s.ToValue,
			GoodKeptPct:   s.GoodKeptPct,
			BadRemovedPct: s.BadRemovedPct,
			MiningRunID:   run.ID,
			DiscoveredAt:  startedAt,
		})
	}
	for _, s := range ranked[:topK] {
		appendSuggestion(s)
	}
	for _, combo := range combos {
		for _, m := range combo.Members {
			appendSuggestion(m)
		}
	}
	if err := r.filters.SaveSuggestions(ctx, suggestions); err != nil {
		return nil, err
	}

	if len(combos) == 0 {
		return result, nil
	}

	suggestionID := func(column string, offset int) uint {
		for i := range suggestions {
			if suggestions[i].ColumnName == column && suggestions[i].MinuteOffset == offset {
				return suggestions[i].ID
			}
		}
		return 0
	}

	var best *model.FilterCombination
	for _, offset := range offsets {
		combo, ok := combos[offset]
		if !ok {
			continue
		}

		memberIDs := make([]uint, 0, len(combo.Members))
		for _, m := range combo.Members {
			memberIDs = append(memberIDs, suggestionID(m.Column, m.Offset))
		}

		saved := &model.FilterCombination{
			FilterIDs:      memberIDs,
			GoodKeptPct:    combo.GoodKeptPct,
			BadRemovedPct:  combo.BadRemovedPct,
			BadTradesAfter: combo.BadTradesAfter,
			MinuteOffset:   combo.MinuteOffset,
			MiningRunID:    run.ID,
		}
		if err := r.filters.SaveCombination(ctx, saved); err != nil {
			return nil, err
		}
		if best == nil || saved.BadRemovedPct > best.BadRemovedPct {
			best = saved
		}

		for _, project := range projects {
			if project.EvalMinuteOffset != offset {
				continue
			}
			if err := r.filters.ActivateCombination(ctx, project.ID, saved.ID); err != nil {
				return nil, err
			}
		}
	}
	if best != nil {
		result.bestCombinationID = &best.ID
	}

	for _, project := range projects {
		if _, ok := combos[project.EvalMinuteOffset]; !ok {
			logger.WithFields(map[string]interface{}{
				"component": "miner",
				"run_id":    run.ID,
				"project":   project.Name,
				"offset":    project.EvalMinuteOffset,
			}).Warn("No combination minable at the project's offset, previous rule set kept")
		}
	}

	return result, nil
}

// reportConsistency is observational only: a failure here never fails the
// run that produced new filters.
func (r *Runner) reportConsistency(ctx context.Context, log *logger.Entry) {
	outcomes, err := r.loadRecentOutcomes(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not compute cross-run consistency")
		return
	}
	if len(outcomes) == 0 {
		return
	}

	trend := Trend(outcomes)
	log.WithFields(map[string]interface{}{
		"runs":            len(outcomes),
		"avg_good_kept":   trend.AvgGoodKeptPct,
		"avg_bad_removed": trend.AvgBadRemovedPct,
		"trend":           trend.Trend,
	}).Info("Winning combination trend")

	for _, col := range ColumnConsistencies(outcomes) {
		log.WithFields(map[string]interface{}{
			"column":          col.Column,
			"consistency_pct": col.ConsistencyPct,
			"appearances":     col.Appearances,
		}).Info("Column consistency")
	}
}

func (r *Runner) loadRecentOutcomes(ctx context.Context) ([]RunOutcome, error) {
	combos, err := r.filters.RecentBestCombinations(ctx, r.cfg.ConsistencyRuns)
	if err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		return nil, nil
	}

	idSet := map[uint]bool{}
	allIDs := make([]uint, 0)
	for _, combo := range combos {
		for _, id := range combo.FilterIDs {
			if !idSet[id] {
				idSet[id] = true
				allIDs = append(allIDs, id)
			}
		}
	}

	members, err := r.filters.SuggestionsByIDs(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	columnByID := make(map[uint]string, len(members))
	for _, m := range members {
		columnByID[m.ID] = m.ColumnName
	}

	outcomes := make([]RunOutcome, 0, len(combos))
	for _, combo := range combos {
		outcome := RunOutcome{
			GoodKeptPct:   combo.GoodKeptPct,
			BadRemovedPct: combo.BadRemovedPct,
		}
		for _, id := range combo.FilterIDs {
			if col, ok := columnByID[id]; ok {
				outcome.Columns = append(outcome.Columns, col)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
