package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/validator"
)

type whaleEventWriter interface {
	InsertIdempotent(ctx context.Context, evt *model.WhaleEvent) (bool, error)
	FindBySignature(ctx context.Context, signature string) (*model.WhaleEvent, error)
	LinkCandidate(ctx context.Context, eventID, candidateID uint) error
}

type candidateDecider interface {
	Decide(ctx context.Context, candidate *model.TradeCandidate) (*validator.Decision, error)
}

// WhaleEventPayload is the webhook body delivered by the on-chain relay.
type WhaleEventPayload struct {
	Signature string          `json:"signature"`
	Wallet    string          `json:"wallet"`
	Pair      string          `json:"pair"`
	Side      string          `json:"side"`
	AmountUsd decimal.Decimal `json:"amount_usd"`
	Price     decimal.Decimal `json:"price"`
	BlockTime time.Time       `json:"block_time"`
}

type whaleEventResponse struct {
	Status      string              `json:"status"`
	CandidateID uint                `json:"candidate_id,omitempty"`
	Decision    *validator.Decision `json:"decision,omitempty"`
}

// WhaleWebhookHandler ingests confirmed whale trades. Delivery is
// at-least-once: a signature whose decision already landed answers 200
// without re-deciding, while a redelivery of an undecided buy runs the
// validator again. A buy from a tracked wallet is an entry signal; sells
// are recorded only.
func WhaleWebhookHandler(events whaleEventWriter, decider candidateDecider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload WhaleEventPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid whale event payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.Signature == "" || payload.Wallet == "" || payload.Pair == "" {
			http.Error(w, "signature, wallet and pair are required", http.StatusBadRequest)
			return
		}
		if payload.Side != model.WhaleSideBuy && payload.Side != model.WhaleSideSell {
			http.Error(w, "side must be buy or sell", http.StatusBadRequest)
			return
		}
		if payload.BlockTime.IsZero() {
			payload.BlockTime = time.Now().UTC()
		}

		event := &model.WhaleEvent{
			Signature: payload.Signature,
			Wallet:    payload.Wallet,
			Pair:      payload.Pair,
			Side:      payload.Side,
			AmountUsd: payload.AmountUsd,
			Price:     payload.Price,
			BlockTime: payload.BlockTime,
		}

		inserted, err := events.InsertIdempotent(r.Context(), event)
		if err != nil {
			logger.WithError(err).Error("failed to persist whale event")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if !inserted {
			existing, err := events.FindBySignature(r.Context(), payload.Signature)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			// a buy that was stored but never decided is an incomplete
			// delivery, the relay retries exactly for this case
			if existing == nil || payload.Side != model.WhaleSideBuy || existing.CandidateID != nil {
				resp := whaleEventResponse{Status: "duplicate"}
				if existing != nil && existing.CandidateID != nil {
					resp.CandidateID = *existing.CandidateID
				}
				writeJSON(w, http.StatusOK, resp)
				return
			}

			event = existing
		}

		if payload.Side != model.WhaleSideBuy {
			writeJSON(w, http.StatusOK, whaleEventResponse{Status: "recorded"})
			return
		}

		candidate := &model.TradeCandidate{
			Pair:       payload.Pair,
			GoatWallet: payload.Wallet,
			SignalTs:   payload.BlockTime,
			EntryPrice: payload.Price,
		}

		decision, err := decider.Decide(r.Context(), candidate)
		if err != nil {
			logger.WithError(err).Error("failed to decide candidate")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := events.LinkCandidate(r.Context(), event.ID, candidate.ID); err != nil {
			// the decision itself is durable; the worst case of a lost link
			// is one redundant re-decide on the next redelivery
			logger.WithError(err).Warn("failed to link candidate to whale event")
		}

		writeJSON(w, http.StatusOK, whaleEventResponse{
			Status:      "decided",
			CandidateID: candidate.ID,
			Decision:    decision,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
