package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

type mockCandidateFinder struct {
	candidate *model.TradeCandidate
	err       error
}

func (m *mockCandidateFinder) FindByID(ctx context.Context, id uint) (*model.TradeCandidate, error) {
	return m.candidate, m.err
}

type mockFinalizer struct {
	calledCount int
	gotStatus   string
	gotPrice    decimal.Decimal
	err         error
}

func (m *mockFinalizer) Finalize(ctx context.Context, candidate *model.TradeCandidate, status string, closePrice decimal.Decimal, closedAt time.Time) error {
	m.calledCount++
	m.gotStatus = status
	m.gotPrice = closePrice
	return m.err
}

func openCandidate() *model.TradeCandidate {
	c := &model.TradeCandidate{
		Pair:       "SOLUSDT",
		Status:     model.CandidateStatusOpen,
		EntryPrice: decimal.NewFromFloat(100),
	}
	c.ID = 9
	return c
}

func TestFillsHandler_ClosesCandidate(t *testing.T) {
	finalizer := &mockFinalizer{}
	handler := FillsHandler(&mockCandidateFinder{candidate: openCandidate()}, finalizer)

	body := `{"candidate_id": 9, "status": "closed", "close_price": "100.8", "closed_at": "2024-06-01T12:08:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/fills", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if finalizer.calledCount != 1 {
		t.Fatalf("expected one finalize, got %d", finalizer.calledCount)
	}
	assert.Equal(t, model.CandidateStatusClosed, finalizer.gotStatus)
	assert.True(t, finalizer.gotPrice.Equal(decimal.NewFromFloat(100.8)))
}

func TestFillsHandler_UnknownCandidate(t *testing.T) {
	handler := FillsHandler(&mockCandidateFinder{candidate: nil}, &mockFinalizer{})

	body := `{"candidate_id": 404, "status": "cancelled"}`
	req := httptest.NewRequest(http.MethodPost, "/fills", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestFillsHandler_InvalidPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing candidate", `{"status":"closed"}`},
		{"bad status", `{"candidate_id":1,"status":"open"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/fills", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			FillsHandler(&mockCandidateFinder{}, &mockFinalizer{}).ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestFillsHandler_FinalizeError(t *testing.T) {
	finalizer := &mockFinalizer{err: assert.AnError}
	handler := FillsHandler(&mockCandidateFinder{candidate: openCandidate()}, finalizer)

	body := `{"candidate_id": 9, "status": "closed", "close_price": "100"}`
	req := httptest.NewRequest(http.MethodPost, "/fills", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
