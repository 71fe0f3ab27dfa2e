package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestCandidateRepositoryQueries(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &CandidateRepository{db: mockDB}

	signalTs := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	candidateRows := func(ids ...uint) *sqlmock.Rows {
		rows := sqlmock.NewRows([]string{"id", "pair", "signal_ts", "status", "decision"})
		for _, id := range ids {
			rows.AddRow(id, "SOLUSDT", signalTs, model.CandidateStatusOpen, model.DecisionGo)
		}
		return rows
	}

	t.Run("open accepted oldest first", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trade_candidates" WHERE status = $1 AND decision = $2 ORDER BY signal_ts ASC`)).
			WithArgs(model.CandidateStatusOpen, model.DecisionGo).
			WillReturnRows(candidateRows(4, 7))

		results, err := repo.FindOpenAccepted(context.Background())
		if err != nil {
			t.Fatalf("unexpected error fetching open candidates: %v", err)
		}

		if len(results) != 2 {
			t.Fatalf("expected 2 open candidates, got %d", len(results))
		}

		if results[0].ID != 4 || results[1].ID != 7 {
			t.Fatalf("candidates not returned in expected order: %+v", results)
		}
	})

	t.Run("resolved window is half open", func(t *testing.T) {
		from := signalTs.Add(-24 * time.Hour)
		to := signalTs

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trade_candidates" WHERE status IN ($1,$2,$3) AND realized_gain_pct IS NOT NULL AND (closed_at >= $4 AND closed_at < $5) ORDER BY closed_at ASC`)).
			WithArgs(model.CandidateStatusClosed, model.CandidateStatusCancelled, model.CandidateStatusMissed, from, to).
			WillReturnRows(candidateRows(2))

		results, err := repo.FindResolvedBetween(context.Background(), from, to)
		if err != nil {
			t.Fatalf("unexpected error fetching resolved candidates: %v", err)
		}

		if len(results) != 1 || results[0].ID != 2 {
			t.Fatalf("unexpected resolved candidates: %+v", results)
		}
	})

	t.Run("list recent applies default limit", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trade_candidates" ORDER BY id DESC LIMIT $1`)).
			WithArgs(50).
			WillReturnRows(candidateRows(9, 8))

		results, err := repo.ListRecent(context.Background(), 0)
		if err != nil {
			t.Fatalf("unexpected error listing candidates: %v", err)
		}

		if len(results) != 2 || results[0].ID != 9 {
			t.Fatalf("unexpected recent candidates: %+v", results)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPriceRepositoryRecentPrices(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PriceRepository{db: mockDB}

	until := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	window := 3 * time.Minute

	rows := sqlmock.NewRows([]string{"id", "symbol", "datetime", "price"}).
		AddRow(3, "SOLUSDT", until, "100.6").
		AddRow(2, "SOLUSDT", until.Add(-time.Minute), "100.2").
		AddRow(1, "SOLUSDT", until.Add(-2*time.Minute), "100")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "price_ticks" WHERE symbol = $1 AND datetime > $2 AND datetime <= $3 ORDER BY datetime DESC`)).
		WithArgs("SOLUSDT", until.Add(-window), until).
		WillReturnRows(rows)

	ticks, err := repo.RecentPrices(context.Background(), "SOLUSDT", until, window)
	if err != nil {
		t.Fatalf("unexpected error fetching recent prices: %v", err)
	}

	if len(ticks) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(ticks))
	}

	// rows come back newest first, callers get them ascending
	if !ticks[0].Datetime.Before(ticks[1].Datetime) || !ticks[1].Datetime.Before(ticks[2].Datetime) {
		t.Fatalf("ticks not ascending: %+v", ticks)
	}

	if ticks[0].Price.String() != "100" || ticks[2].Price.String() != "100.6" {
		t.Fatalf("unexpected tick prices: %+v", ticks)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}
