package features

import (
	"context"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/session"
)

// SessionProvider records the NY trading-session state a sample was taken in.
// Pure clock math, cannot fail.
type SessionProvider struct{}

func NewSessionProvider() *SessionProvider {
	return &SessionProvider{}
}

func (p *SessionProvider) Section() string { return model.SectionSessionState }

func (p *SessionProvider) Columns() []string {
	return []string{
		"session_code",
		"session_size_multiplier",
		"no_trade_window",
		"hour_of_day_ny",
		"weekday_ny",
	}
}

func (p *SessionProvider) Collect(
	ctx context.Context,
	candidate *model.TradeCandidate,
	asOf time.Time,
) (map[string]float64, error) {

	state := session.Detect(asOf)

	noTrade := 0.0
	if state.NoTradeWindow {
		noTrade = 1.0
	}

	return map[string]float64{
		"session_code":            state.Code,
		"session_size_multiplier": state.SizeMultiplier,
		"no_trade_window":         noTrade,
		"hour_of_day_ny":          state.HourNY,
		"weekday_ny":              state.Weekday,
	}, nil
}
