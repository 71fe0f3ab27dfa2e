package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

func newCandidateTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}
	if err := db.AutoMigrate(&model.TradeCandidate{}); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	return db
}

func newTestCandidate(pair string) *model.TradeCandidate {
	return &model.TradeCandidate{
		Pair:       pair,
		GoatWallet: "goat-1",
		SignalTs:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EntryPrice: decimal.NewFromFloat(171.25),
	}
}

func TestSetDecision_NoGoIsTerminal(t *testing.T) {
	db := newCandidateTestDB(t)
	repo := NewCandidateRepository().WithDB(db)
	ctx := context.Background()

	rejected := newTestCandidate("SOLUSDT")
	if err := repo.Create(ctx, rejected); err != nil {
		t.Fatalf("failed to create candidate: %v", err)
	}

	err := repo.SetDecision(ctx, rejected.ID, model.DecisionNoGo, `{"reason":"FILTER_BLOCKED"}`, "combo-7")
	if err != nil {
		t.Fatalf("failed to set decision: %v", err)
	}

	got, err := repo.FindByID(ctx, rejected.ID)
	if err != nil {
		t.Fatalf("failed to fetch candidate: %v", err)
	}
	if got.Status != model.CandidateStatusRejected {
		t.Fatalf("expected status %s after NO_GO, got %s", model.CandidateStatusRejected, got.Status)
	}
	if !got.IsTerminal() {
		t.Fatal("a rejected candidate must be terminal")
	}

	// an accepted candidate stays open until its outcome resolves it
	accepted := newTestCandidate("BTCUSDT")
	if err := repo.Create(ctx, accepted); err != nil {
		t.Fatalf("failed to create candidate: %v", err)
	}
	if err := repo.SetDecision(ctx, accepted.ID, model.DecisionGo, `{"reason":"FILTERS_PASSED"}`, "combo-7"); err != nil {
		t.Fatalf("failed to set decision: %v", err)
	}

	got, err = repo.FindByID(ctx, accepted.ID)
	if err != nil {
		t.Fatalf("failed to fetch candidate: %v", err)
	}
	if got.Status != model.CandidateStatusOpen {
		t.Fatalf("expected status %s after GO, got %s", model.CandidateStatusOpen, got.Status)
	}
	if got.IsTerminal() {
		t.Fatal("an open accepted candidate must not be terminal")
	}
}
