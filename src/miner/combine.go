package miner

import (
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// Combo is a conjunction of mined singles with its candidate-level stats.
// Members all share one minute offset so the live path can evaluate the
// combination against a single snapshot.
type Combo struct {
	Members        []Single
	GoodKeptPct    float64
	BadRemovedPct  float64
	BadTradesAfter int
	MinuteOffset   int
}

// BuildCombination grows a combination greedily from the ranked singles.
// The best single seeds the combination; each further member must improve
// bad removal by at least minImprovementPct without dropping good retention
// below goodKeptFloorPct. Because members are ANDed, good retention can only
// fall and bad removal can only rise as the combination grows.
func BuildCombination(
	ds *Dataset,
	ranked []Single,
	topK int,
	minFilters int,
	maxFilters int,
	goodKeptFloorPct float64,
	minImprovementPct float64,
) (Combo, bool) {

	if len(ranked) == 0 || minFilters < 1 {
		return Combo{}, false
	}
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	seed := ranked[0]
	members := []Single{seed}
	current := evaluateCombo(ds, members, seed.Offset)

	// pool: remaining singles at the seed's offset, one per column
	pool := make([]Single, 0, len(ranked)-1)
	seen := map[string]bool{seed.Column: true}
	for _, s := range ranked[1:] {
		if s.Offset != seed.Offset || seen[s.Column] {
			continue
		}
		seen[s.Column] = true
		pool = append(pool, s)
	}

	for len(members) < maxFilters && len(pool) > 0 {
		bestIdx := -1
		var bestEval Combo

		for i, s := range pool {
			trial := evaluateCombo(ds, append(append([]Single(nil), members...), s), seed.Offset)
			if trial.GoodKeptPct < goodKeptFloorPct {
				continue
			}
			if trial.BadRemovedPct-current.BadRemovedPct < minImprovementPct {
				continue
			}
			if bestIdx < 0 || trial.BadRemovedPct > bestEval.BadRemovedPct {
				bestIdx = i
				bestEval = trial
			}
		}

		if bestIdx < 0 {
			break
		}

		members = append(members, pool[bestIdx])
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
		current = bestEval
	}

	if len(members) < minFilters {
		return Combo{}, false
	}

	return current, true
}

// BuildCombinationAt restricts the search to singles mined at one minute
// offset. A project evaluates its combination against the snapshot of a
// single offset, so a rule mined at minute 3 must never be activated for a
// project reading minute 0.
func BuildCombinationAt(
	ds *Dataset,
	ranked []Single,
	offset int,
	topK int,
	minFilters int,
	maxFilters int,
	goodKeptFloorPct float64,
	minImprovementPct float64,
) (Combo, bool) {

	at := make([]Single, 0, len(ranked))
	for _, s := range ranked {
		if s.Offset == offset {
			at = append(at, s)
		}
	}
	return BuildCombination(ds, at, topK, minFilters, maxFilters, goodKeptFloorPct, minImprovementPct)
}

// evaluateCombo scores a member set at the candidate level. A candidate
// passes only when every member's column is present and inside its range;
// a missing value fails the candidate.
func evaluateCombo(ds *Dataset, members []Single, offset int) Combo {
	goodTotal, badTotal := 0, 0
	goodKept, badKept := 0, 0

	for i := range ds.Candidates {
		c := &ds.Candidates[i]

		good := c.Label == model.LabelGood
		if good {
			goodTotal++
		} else {
			badTotal++
		}

		passes := true
		for _, m := range members {
			v, ok := c.Values[ColumnKey{Column: m.Column, Offset: m.Offset}]
			if !ok || v < m.FromValue || v > m.ToValue {
				passes = false
				break
			}
		}
		if passes {
			if good {
				goodKept++
			} else {
				badKept++
			}
		}
	}

	combo := Combo{
		Members:        members,
		BadTradesAfter: badKept,
		MinuteOffset:   offset,
	}
	if goodTotal > 0 {
		combo.GoodKeptPct = float64(goodKept) / float64(goodTotal) * 100
	}
	if badTotal > 0 {
		combo.BadRemovedPct = float64(badTotal-badKept) / float64(badTotal) * 100
	}
	return combo
}
