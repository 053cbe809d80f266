package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/riskwatch/internal/view"
)

func TestRender(t *testing.T) {
	page := view.Page{
		Wallet:     "0xabc",
		Network:    "MAINNET",
		LastUpdate: "2025-03-10 12:00:00",
		Balance: view.BalanceView{
			Available:          true,
			Total:              "$1,000.00",
			Free:               "$800.00",
			Used:               "$200.00",
			MarginUsagePercent: "20.0%",
		},
		Positions: view.PositionsView{
			Count:              1,
			TotalUnrealizedPnL: "$50.00",
			TotalNotional:      "$500.00",
			Rows: []view.PositionRow{{
				Symbol: "BTC/USDC:USDC", Side: "LONG", Size: "0.010000", EntryPrice: "$45,000.00",
				MarkPrice: "$50,000.00", Notional: "$500.00", UnrealizedPnL: "$50.00", PnLPercent: "11.11%",
			}},
		},
		Trades: view.TradesView{
			Days: 2, Total: 1, Symbol: "All", Side: "All",
			Rows: []view.TradeRow{{
				Time: "2025-03-10 11:00:00", Symbol: "BTC/USDC:USDC", Side: "BUY", OID: "N/A",
				Amount: "0.010000", Price: "$45,000.00", Cost: "$450.00", Fee: "$0.1000", ClosedPnL: "$0.00",
			}},
			Stats: view.StatsView{Count: 1, TotalClosedPnL: "$0.00", TotalFees: "$0.1000", NetPnL: "-$0.10"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, page))
	out := buf.String()

	for _, want := range []string{
		"Wallet: 0xabc", "$1,000.00", "20.0%", "BTC/USDC:USDC", "LONG", "11.11%",
		"Trade History (last 2 days, symbol All, side All)", "2025-03-10 11:00:00", "N/A", "-$0.10",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRender_Warnings(t *testing.T) {
	page := view.Page{
		Balance:   view.BalanceView{Warning: view.MsgBalanceUnavailable, Error: "timeout"},
		Positions: view.PositionsView{Message: view.MsgNoPositions},
		Trades:    view.TradesView{Days: 3, Symbol: "All", Side: "All", Message: "No trades in the last 3 days"},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, page))
	out := buf.String()

	assert.Contains(t, out, "Unable to fetch account balance")
	assert.Contains(t, out, "(timeout)")
	assert.Contains(t, out, "No open positions")
	assert.Contains(t, out, "No trades in the last 3 days")
}
