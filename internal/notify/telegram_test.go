package notify

import (
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"crypto-trade-desk/internal/domain"
)

func TestParseCallback(t *testing.T) {
	approve, id, ok := parseCallback("signal_approve_abc-123")
	assert.True(t, ok)
	assert.True(t, approve)
	assert.Equal(t, "abc-123", id)

	approve, id, ok = parseCallback("signal_reject_def-456")
	assert.True(t, ok)
	assert.False(t, approve)
	assert.Equal(t, "def-456", id)

	_, _, ok = parseCallback("channel_something")
	assert.False(t, ok)

	_, _, ok = parseCallback("")
	assert.False(t, ok)
}

func TestOperatorName(t *testing.T) {
	assert.Equal(t, "alice", operatorName(models.User{ID: 42, Username: "alice"}))
	assert.Equal(t, "42", operatorName(models.User{ID: 42}))
}

func TestFormatSignalMessage(t *testing.T) {
	expires := time.Date(2026, 8, 23, 18, 0, 0, 0, time.UTC)
	sig := &domain.Signal{
		ID:              "abc",
		Symbol:          "BTC/USDT",
		SignalType:      domain.SignalTypeBuy,
		Confidence:      decimal.NewFromInt(92),
		EntryPrice:      decimal.NewFromInt(50000),
		StopLossPrice:   decimal.NewFromInt(49000),
		TakeProfitPrice: decimal.NewFromInt(52000),
		Status:          domain.SignalStatusPending,
		AnalysisSummary: "uptrend with oversold RSI",
		ExpiresAt:       &expires,
	}

	text := formatSignalMessage(sig)
	assert.Contains(t, text, "BUY BTC/USDT")
	assert.Contains(t, text, "Confidence: 92%")
	assert.Contains(t, text, "Stop loss: 49000")
	assert.Contains(t, text, "uptrend with oversold RSI")
	assert.Contains(t, text, "Expires 2026-08-23T18:00:00Z")

	// Once decided the expiry line disappears and the operator shows.
	operator := "alice"
	sig.Status = domain.SignalStatusApproved
	sig.ApprovedBy = &operator

	text = formatSignalMessage(sig)
	assert.Contains(t, text, "Signal APPROVED")
	assert.Contains(t, text, "Decided by alice")
	assert.NotContains(t, text, "Expires")
}

func TestClosedSince(t *testing.T) {
	prev := map[string]struct{}{"t1": {}, "t2": {}, "t3": {}}
	current := map[string]struct{}{"t2": {}}

	assert.Equal(t, []string{"t1", "t3"}, closedSince(prev, current))
	assert.Empty(t, closedSince(current, current))
	assert.Empty(t, closedSince(nil, current))
}

func TestFormatTradeClosedMessage(t *testing.T) {
	exit := decimal.NewFromInt(52000)
	pnl := decimal.NewFromInt(8)
	pct := decimal.NewFromInt(4)
	trade := &domain.Trade{
		ID:            "t1",
		Symbol:        "BTC/USDT",
		Side:          domain.SignalTypeBuy,
		EntryPrice:    decimal.NewFromInt(50000),
		Quantity:      decimal.RequireFromString("0.004"),
		Status:        domain.TradeStatusTakeProfit,
		ExitPrice:     &exit,
		PnlAmount:     &pnl,
		PnlPercentage: &pct,
	}

	text := formatTradeClosedMessage(trade)
	assert.Contains(t, text, "Trade closed: TAKE_PROFIT")
	assert.Contains(t, text, "BUY BTC/USDT qty=0.004")
	assert.Contains(t, text, "P&L: 8 (4%)")
}
