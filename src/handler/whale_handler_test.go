package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/validator"
)

type mockEventWriter struct {
	inserted    bool
	err         error
	existing    *model.WhaleEvent
	findErr     error
	linkErr     error
	calledCount int
	got         *model.WhaleEvent
	linkedEvent uint
	linkedCand  uint
}

func (m *mockEventWriter) InsertIdempotent(ctx context.Context, evt *model.WhaleEvent) (bool, error) {
	m.calledCount++
	m.got = evt
	return m.inserted, m.err
}

func (m *mockEventWriter) FindBySignature(ctx context.Context, signature string) (*model.WhaleEvent, error) {
	return m.existing, m.findErr
}

func (m *mockEventWriter) LinkCandidate(ctx context.Context, eventID, candidateID uint) error {
	m.linkedEvent = eventID
	m.linkedCand = candidateID
	return m.linkErr
}

type mockDecider struct {
	decision    *validator.Decision
	err         error
	calledCount int
	got         *model.TradeCandidate
}

func (m *mockDecider) Decide(ctx context.Context, candidate *model.TradeCandidate) (*validator.Decision, error) {
	m.calledCount++
	m.got = candidate
	candidate.ID = 42
	return m.decision, m.err
}

const buyEventBody = `{
	"signature": "sig-1",
	"wallet": "goat-1",
	"pair": "SOLUSDT",
	"side": "buy",
	"amount_usd": "125000",
	"price": "171.25",
	"block_time": "2024-06-01T12:00:00Z"
}`

func TestWhaleWebhookHandler_BuySignalDecided(t *testing.T) {
	events := &mockEventWriter{inserted: true}
	decider := &mockDecider{decision: &validator.Decision{Decision: model.DecisionGo, Reason: "FILTERS_PASSED"}}
	handler := WhaleWebhookHandler(events, decider)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(buyEventBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if events.calledCount != 1 || decider.calledCount != 1 {
		t.Fatalf("expected one insert and one decide, got %d/%d", events.calledCount, decider.calledCount)
	}

	assert.Equal(t, "SOLUSDT", decider.got.Pair)
	assert.Equal(t, "goat-1", decider.got.GoatWallet)
	assert.Contains(t, rr.Body.String(), `"candidate_id":42`)
	assert.Contains(t, rr.Body.String(), `"decided"`)
}

func TestWhaleWebhookHandler_DuplicateIsNoOp(t *testing.T) {
	candidateID := uint(42)
	events := &mockEventWriter{inserted: false, existing: &model.WhaleEvent{
		ID:          7,
		Signature:   "sig-1",
		Side:        model.WhaleSideBuy,
		CandidateID: &candidateID,
	}}
	decider := &mockDecider{}
	handler := WhaleWebhookHandler(events, decider)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(buyEventBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on duplicate, got %d", rr.Code)
	}
	if decider.calledCount != 0 {
		t.Fatalf("duplicate delivery must not re-decide, got %d calls", decider.calledCount)
	}
	assert.Contains(t, rr.Body.String(), `"duplicate"`)
	assert.Contains(t, rr.Body.String(), `"candidate_id":42`)
}

func TestWhaleWebhookHandler_RedeliveryOfUndecidedBuyDecides(t *testing.T) {
	events := &mockEventWriter{inserted: true}
	decider := &mockDecider{err: assert.AnError}
	handler := WhaleWebhookHandler(events, decider)

	// first delivery: the event lands but the decision does not
	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(buyEventBody))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 on decide failure, got %d", rr.Code)
	}
	if events.linkedCand != 0 {
		t.Fatalf("failed decision must not link a candidate")
	}

	// the relay retries the same signature, the stored event has no
	// candidate yet, so the decision runs again instead of short-circuiting
	events.inserted = false
	events.existing = &model.WhaleEvent{ID: 7, Signature: "sig-1", Side: model.WhaleSideBuy}
	decider.err = nil
	decider.decision = &validator.Decision{Decision: model.DecisionGo, Reason: "FILTERS_PASSED"}

	req = httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(buyEventBody))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on redelivery, got %d", rr.Code)
	}
	if decider.calledCount != 2 {
		t.Fatalf("undecided redelivery must re-decide, got %d calls", decider.calledCount)
	}
	assert.Contains(t, rr.Body.String(), `"decided"`)
	assert.Equal(t, uint(7), events.linkedEvent)
	assert.Equal(t, uint(42), events.linkedCand)
}

func TestWhaleWebhookHandler_DuplicateSellNotRedecided(t *testing.T) {
	events := &mockEventWriter{inserted: false, existing: &model.WhaleEvent{ID: 9, Signature: "sig-1", Side: model.WhaleSideSell}}
	decider := &mockDecider{}
	body := strings.Replace(buyEventBody, `"buy"`, `"sell"`, 1)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(body))
	rr := httptest.NewRecorder()

	WhaleWebhookHandler(events, decider).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if decider.calledCount != 0 {
		t.Fatalf("duplicate sell must not decide")
	}
	assert.Contains(t, rr.Body.String(), `"duplicate"`)
}

func TestWhaleWebhookHandler_SellOnlyRecorded(t *testing.T) {
	events := &mockEventWriter{inserted: true}
	decider := &mockDecider{}
	body := strings.Replace(buyEventBody, `"buy"`, `"sell"`, 1)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(body))
	rr := httptest.NewRecorder()

	WhaleWebhookHandler(events, decider).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if decider.calledCount != 0 {
		t.Fatalf("sells must not create candidates")
	}
	assert.Contains(t, rr.Body.String(), `"recorded"`)
}

func TestWhaleWebhookHandler_InvalidPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"signature":"s","wallet":"w","pair":"p","side":"buy","bogus":1}`},
		{"missing signature", `{"wallet":"w","pair":"p","side":"buy"}`},
		{"bad side", `{"signature":"s","wallet":"w","pair":"p","side":"hold"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			WhaleWebhookHandler(&mockEventWriter{}, &mockDecider{}).ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestWhaleWebhookHandler_InsertError(t *testing.T) {
	events := &mockEventWriter{err: assert.AnError}
	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", strings.NewReader(buyEventBody))
	rr := httptest.NewRecorder()

	WhaleWebhookHandler(events, &mockDecider{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
