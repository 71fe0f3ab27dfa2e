package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

type candidateFinder interface {
	FindByID(ctx context.Context, id uint) (*model.TradeCandidate, error)
}

type candidateFinalizer interface {
	Finalize(ctx context.Context, candidate *model.TradeCandidate, status string, closePrice decimal.Decimal, closedAt time.Time) error
}

// FillPayload is the executor's callback when a copied position closes or
// its order is cancelled.
type FillPayload struct {
	CandidateID uint            `json:"candidate_id"`
	Status      string          `json:"status"`
	ClosePrice  decimal.Decimal `json:"close_price"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// FillsHandler resolves a candidate with the outcome reported by the
// external executor. A candidate that already reached a terminal status
// answers 200 without rewriting it; closers racing on the same candidate
// serialize inside the store.
func FillsHandler(candidates candidateFinder, recorder candidateFinalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload FillPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid fill payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.CandidateID == 0 {
			http.Error(w, "candidate_id is required", http.StatusBadRequest)
			return
		}
		if payload.Status != model.CandidateStatusClosed && payload.Status != model.CandidateStatusCancelled {
			http.Error(w, "status must be closed or cancelled", http.StatusBadRequest)
			return
		}
		if payload.ClosedAt.IsZero() {
			payload.ClosedAt = time.Now().UTC()
		}

		candidate, err := candidates.FindByID(r.Context(), payload.CandidateID)
		if err != nil {
			logger.WithError(err).Error("failed to load candidate")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if candidate == nil {
			http.Error(w, "candidate not found", http.StatusNotFound)
			return
		}

		if err := recorder.Finalize(r.Context(), candidate, payload.Status, payload.ClosePrice, payload.ClosedAt); err != nil {
			logger.WithFields(map[string]interface{}{
				"candidate": payload.CandidateID,
				"status":    payload.Status,
			}).WithError(err).Error("failed to finalize candidate")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "resolved",
			"candidate_id": payload.CandidateID,
		})
	}
}
