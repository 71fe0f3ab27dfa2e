package trail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/features"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
)

type fakeProvider struct {
	section string
	columns []string
	values  map[string]float64
	err     error
}

func (p *fakeProvider) Section() string   { return p.section }
func (p *fakeProvider) Columns() []string { return p.columns }
func (p *fakeProvider) Collect(ctx context.Context, candidate *model.TradeCandidate, asOf time.Time) (map[string]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.values, nil
}

type fakeCandidateStore struct {
	open    []model.TradeCandidate
	openErr error

	closed []closeCall
	// keyed by candidate id, returned by CloseWithOutcome
	closeErr map[uint]error
}

type closeCall struct {
	id              uint
	status          string
	realizedGainPct float64
	maxFavorablePct float64
	closedAt        time.Time
}

func (s *fakeCandidateStore) FindOpenAccepted(ctx context.Context) ([]model.TradeCandidate, error) {
	return s.open, s.openErr
}

func (s *fakeCandidateStore) CloseWithOutcome(ctx context.Context, id uint, status string, realizedGainPct, maxFavorablePct, goodTradeThresholdPct float64, closedAt time.Time) error {
	if err, ok := s.closeErr[id]; ok {
		return err
	}
	s.closed = append(s.closed, closeCall{id, status, realizedGainPct, maxFavorablePct, closedAt})
	return nil
}

type fakeSnapshotStore struct {
	rows       []model.TrailSnapshot
	maxOffsets map[uint]int
	insertErr  error
	maxErr     error
}

func (s *fakeSnapshotStore) InsertSnapshots(ctx context.Context, rows []model.TrailSnapshot) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *fakeSnapshotStore) MaxRecordedOffset(ctx context.Context, candidateID uint) (int, error) {
	if s.maxErr != nil {
		return -1, s.maxErr
	}
	if v, ok := s.maxOffsets[candidateID]; ok {
		return v, nil
	}
	return -1, nil
}

type fakeTickStore struct {
	ticks []model.PriceTick
	err   error
}

func (s *fakeTickStore) TicksBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceTick, error) {
	return s.ticks, s.err
}

func newTestRecorder(candidates *fakeCandidateStore, snapshots *fakeSnapshotStore, ticks *fakeTickStore, providers []features.Provider) *Recorder {
	return NewRecorder(candidates, snapshots, ticks, providers, Config{
		TrackingWindowMinutes: 15,
		ProviderTimeout:       time.Second,
		GoodTradeThresholdPct: 0.3,
	})
}

func testCandidate(id uint, signalTs time.Time) model.TradeCandidate {
	c := model.TradeCandidate{
		Pair:       "SOLUSDT",
		GoatWallet: "goat-1",
		SignalTs:   signalTs,
		EntryPrice: decimal.NewFromFloat(100),
		Status:     model.CandidateStatusOpen,
		Decision:   model.DecisionGo,
	}
	c.ID = id
	return c
}

func TestSample_SectionFailureNullsOnlyThatSection(t *testing.T) {
	snapshots := &fakeSnapshotStore{}
	providers := []features.Provider{
		&fakeProvider{
			section: model.SectionPriceMomentum,
			columns: []string{"price_change_1m", "price_change_3m"},
			values:  map[string]float64{"price_change_1m": 0.1, "price_change_3m": 0.4},
		},
		&fakeProvider{
			section: model.SectionOrderBook,
			columns: []string{"bid_ask_spread_pct", "book_imbalance"},
			err:     errors.New("feed down"),
		},
	}
	recorder := newTestRecorder(&fakeCandidateStore{}, snapshots, &fakeTickStore{}, providers)

	candidate := testCandidate(7, time.Now())
	err := recorder.Sample(context.Background(), &candidate, 3)
	require.NoError(t, err)

	require.Len(t, snapshots.rows, 4)

	byColumn := map[string]model.TrailSnapshot{}
	for _, row := range snapshots.rows {
		assert.Equal(t, uint(7), row.CandidateID)
		assert.Equal(t, 3, row.MinuteOffset)
		byColumn[row.ColumnName] = row
	}

	require.NotNil(t, byColumn["price_change_1m"].Value)
	assert.InDelta(t, 0.1, *byColumn["price_change_1m"].Value, 1e-9)
	require.NotNil(t, byColumn["price_change_3m"].Value)

	assert.Nil(t, byColumn["bid_ask_spread_pct"].Value)
	assert.Nil(t, byColumn["book_imbalance"].Value)
	assert.Equal(t, model.SectionOrderBook, byColumn["book_imbalance"].Section)
}

func TestSampleDue_SkipsAlreadyRecordedOffsets(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	signalTs := now.Add(-5 * time.Minute)

	candidates := &fakeCandidateStore{open: []model.TradeCandidate{testCandidate(1, signalTs)}}
	snapshots := &fakeSnapshotStore{maxOffsets: map[uint]int{1: 3}}
	providers := []features.Provider{
		&fakeProvider{
			section: model.SectionPriceMomentum,
			columns: []string{"price_change_1m"},
			values:  map[string]float64{"price_change_1m": 0.0},
		},
	}
	recorder := newTestRecorder(candidates, snapshots, &fakeTickStore{}, providers).
		WithClock(func() time.Time { return now })

	require.NoError(t, recorder.SampleDue(context.Background()))

	// offsets 0..3 were already on record, so only 4 and 5 get written
	require.Len(t, snapshots.rows, 2)
	assert.Equal(t, 4, snapshots.rows[0].MinuteOffset)
	assert.Equal(t, 5, snapshots.rows[1].MinuteOffset)
}

func TestSampleDue_RerunWritesNothingNew(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	signalTs := now.Add(-5 * time.Minute)

	candidates := &fakeCandidateStore{open: []model.TradeCandidate{testCandidate(1, signalTs)}}
	snapshots := &fakeSnapshotStore{maxOffsets: map[uint]int{1: 5}}
	recorder := newTestRecorder(candidates, snapshots, &fakeTickStore{}, []features.Provider{
		&fakeProvider{section: model.SectionPriceMomentum, columns: []string{"price_change_1m"}},
	}).WithClock(func() time.Time { return now })

	require.NoError(t, recorder.SampleDue(context.Background()))
	assert.Empty(t, snapshots.rows)
}

func TestSampleDue_FinalizesMissedCandidates(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	signalTs := now.Add(-20 * time.Minute)

	candidates := &fakeCandidateStore{open: []model.TradeCandidate{testCandidate(9, signalTs)}}
	ticks := &fakeTickStore{ticks: []model.PriceTick{
		{Symbol: "SOLUSDT", Datetime: signalTs.Add(time.Minute), Price: decimal.NewFromFloat(102)},
		{Symbol: "SOLUSDT", Datetime: signalTs.Add(10 * time.Minute), Price: decimal.NewFromFloat(101)},
	}}
	snapshots := &fakeSnapshotStore{}
	recorder := newTestRecorder(candidates, snapshots, ticks, nil).
		WithClock(func() time.Time { return now })

	require.NoError(t, recorder.SampleDue(context.Background()))

	require.Len(t, candidates.closed, 1)
	closed := candidates.closed[0]
	assert.Equal(t, uint(9), closed.id)
	assert.Equal(t, model.CandidateStatusMissed, closed.status)
	assert.InDelta(t, 1.0, closed.realizedGainPct, 1e-9)
	assert.InDelta(t, 2.0, closed.maxFavorablePct, 1e-9)
	assert.Empty(t, snapshots.rows)
}

func TestSampleDue_MissedWithoutTicksClosesAtZero(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	signalTs := now.Add(-30 * time.Minute)

	candidates := &fakeCandidateStore{open: []model.TradeCandidate{testCandidate(3, signalTs)}}
	recorder := newTestRecorder(candidates, &fakeSnapshotStore{}, &fakeTickStore{}, nil).
		WithClock(func() time.Time { return now })

	require.NoError(t, recorder.SampleDue(context.Background()))

	require.Len(t, candidates.closed, 1)
	assert.Equal(t, model.CandidateStatusMissed, candidates.closed[0].status)
	assert.Zero(t, candidates.closed[0].realizedGainPct)
	assert.Zero(t, candidates.closed[0].maxFavorablePct)
}

func TestFinalize_UsesClosePriceAndPricePath(t *testing.T) {
	signalTs := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	closedAt := signalTs.Add(8 * time.Minute)

	candidates := &fakeCandidateStore{}
	ticks := &fakeTickStore{ticks: []model.PriceTick{
		{Symbol: "SOLUSDT", Datetime: signalTs.Add(time.Minute), Price: decimal.NewFromFloat(103)},
		{Symbol: "SOLUSDT", Datetime: signalTs.Add(4 * time.Minute), Price: decimal.NewFromFloat(101)},
	}}
	recorder := newTestRecorder(candidates, &fakeSnapshotStore{}, ticks, nil)

	candidate := testCandidate(4, signalTs)
	err := recorder.Finalize(context.Background(), &candidate, model.CandidateStatusClosed, decimal.NewFromFloat(100.5), closedAt)
	require.NoError(t, err)

	require.Len(t, candidates.closed, 1)
	closed := candidates.closed[0]
	assert.Equal(t, model.CandidateStatusClosed, closed.status)
	assert.InDelta(t, 0.5, closed.realizedGainPct, 1e-9)
	assert.InDelta(t, 3.0, closed.maxFavorablePct, 1e-9)
	assert.Equal(t, closedAt, closed.closedAt)
}

func TestFinalize_AlreadyResolvedIsNoOp(t *testing.T) {
	candidates := &fakeCandidateStore{closeErr: map[uint]error{5: repository.ErrAlreadyResolved}}
	recorder := newTestRecorder(candidates, &fakeSnapshotStore{}, &fakeTickStore{}, nil)

	candidate := testCandidate(5, time.Now().Add(-time.Minute))
	err := recorder.Finalize(context.Background(), &candidate, model.CandidateStatusClosed, decimal.NewFromFloat(100), time.Now())
	assert.NoError(t, err)
}
