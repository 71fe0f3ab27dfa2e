package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/gate"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// Reasons emitted by the validator on top of the gate's own.
const (
	ReasonFiltersPassed = "FILTERS_PASSED"
	ReasonFilterBlocked = "FILTER_BLOCKED"
	ReasonFilterError   = "FILTER_ERROR"
)

type momentumGate interface {
	Evaluate(ctx context.Context, signalTime time.Time, entryPrice decimal.Decimal, pair string) gate.Result
}

type trailRecorder interface {
	BeginTracking(ctx context.Context, candidate *model.TradeCandidate) error
}

type candidateStore interface {
	Create(ctx context.Context, c *model.TradeCandidate) error
	SetDecision(ctx context.Context, id uint, decision, reasonJSON, ruleSetVersion string) error
}

type projectStore interface {
	EnabledProjects(ctx context.Context) ([]model.FilterProject, error)
	GetCombination(ctx context.Context, id uint) (*model.FilterCombination, []model.FilterSuggestion, error)
}

type snapshotReader interface {
	GetMinuteSnapshot(ctx context.Context, candidateID uint, minuteOffset int) (map[string]*float64, error)
}

type exceptionSink interface {
	Record(ctx context.Context, module, method string, cause error, context_ map[string]interface{})
}

// Decision is the validator's final verdict with its full audit trail.
type Decision struct {
	Decision       string          `json:"decision"`
	Reason         string          `json:"reason"`
	RuleSetVersion string          `json:"rule_set_version"`
	Gate           gate.Result     `json:"gate"`
	Projects       []ProjectResult `json:"projects,omitempty"`
}

// Validator is the combined decision point: the momentum gate first, then
// every enabled filter project against the snapshot at the offset its active
// combination was mined at.
// Both stages fail closed, and every verdict is persisted with its rationale
// so rejected candidates feed future mining too.
type Validator struct {
	gate       momentumGate
	recorder   trailRecorder
	candidates candidateStore
	projects   projectStore
	snapshots  snapshotReader
	exceptions exceptionSink
}

func New(
	momentum momentumGate,
	recorder trailRecorder,
	candidates candidateStore,
	projects projectStore,
	snapshots snapshotReader,
	exceptions exceptionSink,
) *Validator {
	return &Validator{
		gate:       momentum,
		recorder:   recorder,
		candidates: candidates,
		projects:   projects,
		snapshots:  snapshots,
		exceptions: exceptions,
	}
}

// Decide runs the full two-stage check for an incoming signal. The candidate
// is persisted first so that even a NO_GO leaves an auditable row.
func (v *Validator) Decide(ctx context.Context, candidate *model.TradeCandidate) (*Decision, error) {
	if candidate.ID == 0 {
		if err := v.candidates.Create(ctx, candidate); err != nil {
			return nil, err
		}
	}

	gateRes := v.gate.Evaluate(ctx, candidate.SignalTs, candidate.EntryPrice, candidate.Pair)

	decision := &Decision{
		Decision:       gateRes.Decision,
		Reason:         gateRes.Reason,
		RuleSetVersion: "gate",
		Gate:           gateRes,
	}

	if gateRes.Decision == model.DecisionGo {
		v.applyFilters(ctx, candidate, decision)
	}

	if err := v.persist(ctx, candidate, decision); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"component": "validator",
		"candidate": candidate.ID,
		"pair":      candidate.Pair,
		"decision":  decision.Decision,
		"reason":    decision.Reason,
		"rule_set":  decision.RuleSetVersion,
	}).Info("Candidate decided")

	return decision, nil
}

// applyFilters runs stage two. Any error anywhere in it flips the decision
// to NO_GO and leaves an exception record, a broken filter path must never
// wave a trade through.
func (v *Validator) applyFilters(ctx context.Context, candidate *model.TradeCandidate, decision *Decision) {
	results, version, err := v.evaluateProjects(ctx, candidate)
	if err != nil {
		v.exceptions.Record(ctx, "validator", "applyFilters", err, map[string]interface{}{
			"candidate": candidate.ID,
			"pair":      candidate.Pair,
		})
		decision.Decision = model.DecisionNoGo
		decision.Reason = ReasonFilterError
		return
	}

	decision.Projects = results
	decision.RuleSetVersion = version
	decision.Reason = ReasonFiltersPassed

	for _, res := range results {
		if !res.Passed {
			decision.Decision = model.DecisionNoGo
			decision.Reason = ReasonFilterBlocked
			return
		}
	}
}

func (v *Validator) evaluateProjects(ctx context.Context, candidate *model.TradeCandidate) ([]ProjectResult, string, error) {
	// minute-0 features must exist before the rule sets can read them
	if err := v.recorder.BeginTracking(ctx, candidate); err != nil {
		return nil, "", fmt.Errorf("begin tracking: %w", err)
	}

	projects, err := v.projects.EnabledProjects(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load projects: %w", err)
	}

	results := make([]ProjectResult, 0, len(projects))
	versions := make([]string, 0, len(projects))

	for _, project := range projects {
		if project.ActiveCombinationID == nil {
			// nothing mined yet for this project, it cannot block
			continue
		}

		set, err := v.loadFilterSet(ctx, project)
		if err != nil {
			return nil, "", err
		}
		if set == nil {
			continue
		}

		values, err := v.snapshots.GetMinuteSnapshot(ctx, candidate.ID, set.MinuteOffset)
		if err != nil {
			return nil, "", fmt.Errorf("load snapshot for project %q: %w", project.Name, err)
		}

		results = append(results, set.Evaluate(values))
		versions = append(versions, fmt.Sprintf("%s:c%d", project.Name, set.CombinationID))
	}

	version := "gate"
	if len(versions) > 0 {
		version = strings.Join(versions, ",")
	}
	return results, version, nil
}

func (v *Validator) loadFilterSet(ctx context.Context, project model.FilterProject) (*ConditionalFilterSet, error) {
	combo, members, err := v.projects.GetCombination(ctx, *project.ActiveCombinationID)
	if err != nil {
		return nil, fmt.Errorf("load combination for project %q: %w", project.Name, err)
	}
	if combo == nil || len(members) == 0 {
		logger.WithFields(map[string]interface{}{
			"component": "validator",
			"project":   project.Name,
			"combo":     *project.ActiveCombinationID,
		}).Warn("Active combination missing or empty, project skipped")
		return nil, nil
	}

	// thresholds only hold against the offset the combination was mined at
	if combo.MinuteOffset != project.EvalMinuteOffset {
		logger.WithFields(map[string]interface{}{
			"component":    "validator",
			"project":      project.Name,
			"combo":        combo.ID,
			"combo_offset": combo.MinuteOffset,
			"eval_offset":  project.EvalMinuteOffset,
		}).Warn("Active combination mined at a different offset than the project evaluates")
	}

	return &ConditionalFilterSet{
		ProjectID:     project.ID,
		ProjectName:   project.Name,
		CombinationID: combo.ID,
		MinuteOffset:  combo.MinuteOffset,
		Filters:       members,
	}, nil
}

func (v *Validator) persist(ctx context.Context, candidate *model.TradeCandidate, decision *Decision) error {
	rationale, err := json.Marshal(decision)
	if err != nil {
		return err
	}

	candidate.Decision = decision.Decision
	candidate.DecisionReason = string(rationale)
	candidate.RuleSetVersion = decision.RuleSetVersion

	return v.candidates.SetDecision(ctx, candidate.ID, decision.Decision, string(rationale), decision.RuleSetVersion)
}
