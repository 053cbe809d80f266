package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinTradeHistoryDays smallest selectable history window.
	MinTradeHistoryDays = 1
	// MaxTradeHistoryDays largest selectable history window.
	MaxTradeHistoryDays = 7
	// DefaultTradeHistoryDays window used when nothing is configured.
	DefaultTradeHistoryDays = 2

	// FilterAll selects every symbol or side.
	FilterAll = "All"
)

// Trade single fill of the account.
type Trade struct {
	Timestamp time.Time       `json:"ts"`
	Symbol    string          `json:"symbol"`
	Side      TradeSide       `json:"side"`
	OrderID   string          `json:"oid,omitempty"`
	TradeID   string          `json:"tid,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	Fee       decimal.Decimal `json:"fee"`
	ClosedPnL decimal.Decimal `json:"closed_pnl"`
}

// ClampDays keeps a history window inside [MinTradeHistoryDays, MaxTradeHistoryDays].
func ClampDays(days int) int {
	if days < MinTradeHistoryDays {
		return MinTradeHistoryDays
	}
	if days > MaxTradeHistoryDays {
		return MaxTradeHistoryDays
	}
	return days
}

// SortTradesNewestFirst orders trades by timestamp descending, stable for equal times.
func SortTradesNewestFirst(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.After(trades[j].Timestamp)
	})
}

// TradeFilter narrows the trade history shown to the user.
type TradeFilter struct {
	Days   int
	Symbol string
	Side   string
}

func (f TradeFilter) matchSymbol(t Trade) bool {
	return f.Symbol == "" || f.Symbol == FilterAll || t.Symbol == f.Symbol
}

func (f TradeFilter) matchSide(t Trade) bool {
	if f.Side == "" || strings.EqualFold(f.Side, FilterAll) {
		return true
	}
	side, ok := ParseTradeSide(f.Side)
	return ok && t.Side == side
}

// Apply returns the trades inside the window that match symbol and side, keeping order.
func (f TradeFilter) Apply(trades []Trade, now time.Time) []Trade {
	since := now.Add(-time.Duration(ClampDays(f.Days)) * 24 * time.Hour)
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Timestamp.Before(since) {
			continue
		}
		if !f.matchSymbol(t) || !f.matchSide(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TradeStats totals over a set of trades.
type TradeStats struct {
	Count          int             `json:"count"`
	TotalClosedPnL decimal.Decimal `json:"total_closed_pnl"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
}

// ComputeTradeStats sums closed PnL and fees; net is closed PnL minus fees.
func ComputeTradeStats(trades []Trade) TradeStats {
	stats := TradeStats{
		Count:          len(trades),
		TotalClosedPnL: decimal.Zero,
		TotalFees:      decimal.Zero,
	}
	for _, t := range trades {
		stats.TotalClosedPnL = stats.TotalClosedPnL.Add(t.ClosedPnL)
		stats.TotalFees = stats.TotalFees.Add(t.Fee)
	}
	stats.NetPnL = stats.TotalClosedPnL.Sub(stats.TotalFees)
	return stats
}

// UniqueSymbols lists symbols in order of first appearance.
func UniqueSymbols(trades []Trade) []string {
	seen := make(map[string]struct{}, len(trades))
	symbols := make([]string, 0)
	for _, t := range trades {
		if _, ok := seen[t.Symbol]; ok {
			continue
		}
		seen[t.Symbol] = struct{}{}
		symbols = append(symbols, t.Symbol)
	}
	return symbols
}
