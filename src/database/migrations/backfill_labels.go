package migrations

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// Threshold the engine ran with before the label column existed. Historical
// rows are labeled with the value that was in effect when they resolved, not
// with whatever the current configuration says.
const legacyGoodTradeThresholdPct = 0.3

// backfillCandidateLabels labels resolved candidates created before the label
// column was introduced. Labels are written once and never touched again, so
// only rows with a realized outcome and no label are affected.
func backfillCandidateLabels(db *gorm.DB) error {
	res := db.Exec(
		`UPDATE trade_candidates
		 SET label = CASE WHEN realized_gain_pct >= ? THEN ? ELSE ? END
		 WHERE label IS NULL
		   AND realized_gain_pct IS NOT NULL
		   AND status IN (?, ?, ?)`,
		legacyGoodTradeThresholdPct, model.LabelGood, model.LabelBad,
		model.CandidateStatusClosed, model.CandidateStatusCancelled, model.CandidateStatusMissed,
	)
	if res.Error != nil {
		return fmt.Errorf("backfill candidate labels: %w", res.Error)
	}

	return nil
}

// seedDefaultFilterProject makes sure at least one rule set exists so the
// validator has a project to evaluate once the miner activates a combination.
func seedDefaultFilterProject(db *gorm.DB) error {
	var existing model.FilterProject
	err := db.Where("name = ?", "default").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check default filter project: %w", err)
	}

	project := model.FilterProject{
		Name:             "default",
		Enabled:          true,
		EvalMinuteOffset: 0,
	}
	if err := db.Create(&project).Error; err != nil {
		return fmt.Errorf("seed default filter project: %w", err)
	}

	return nil
}
