// Package view turns a snapshot into the display model rendered by the dashboard
// and the terminal report.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

// Section messages shown when there is nothing to display.
const (
	MsgBalanceUnavailable = "Unable to fetch account balance"
	MsgNoPositions        = "No open positions"
	msgNoTradesFmt        = "No trades in the last %d days"
)

// Page complete display model of one snapshot.
type Page struct {
	SnapshotID  string        `json:"snapshot_id"`
	Wallet      string        `json:"wallet"`
	WalletShort string        `json:"wallet_short"`
	Network     string        `json:"network"`
	LastUpdate  string        `json:"last_update"`
	Balance     BalanceView   `json:"balance"`
	Positions   PositionsView `json:"positions"`
	Trades      TradesView    `json:"trades"`
}

// BalanceView balance metrics. Available is false when the balance could not be fetched.
type BalanceView struct {
	Available          bool    `json:"available"`
	Total              string  `json:"total,omitempty"`
	Free               string  `json:"free,omitempty"`
	Used               string  `json:"used,omitempty"`
	MarginUsage        float64 `json:"margin_usage"`
	MarginUsagePercent string  `json:"margin_usage_percent,omitempty"`
	Warning            string  `json:"warning,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// PositionsView summary metrics and table rows.
type PositionsView struct {
	Count              int           `json:"count"`
	TotalUnrealizedPnL string        `json:"total_unrealized_pnl"`
	TotalPnLPositive   bool          `json:"total_pnl_positive"`
	TotalNotional      string        `json:"total_notional"`
	Rows               []PositionRow `json:"rows"`
	Message            string        `json:"message,omitempty"`
	Error              string        `json:"error,omitempty"`
}

// PositionRow one line of the positions table.
type PositionRow struct {
	Symbol        string   `json:"symbol"`
	Side          string   `json:"side"`
	Size          string   `json:"size"`
	EntryPrice    string   `json:"entry_price"`
	MarkPrice     string   `json:"mark_price"`
	Notional      string   `json:"notional"`
	UnrealizedPnL string   `json:"unrealized_pnl"`
	PnLPercent    string   `json:"pnl_percent"`
	Profitable    bool     `json:"profitable"`
	Details       []string `json:"details"`
}

// TradesView filtered trade table with filter options and statistics.
type TradesView struct {
	Days          int        `json:"days"`
	Total         int        `json:"total"`
	SymbolOptions []string   `json:"symbol_options"`
	SideOptions   []string   `json:"side_options"`
	Symbol        string     `json:"symbol"`
	Side          string     `json:"side"`
	Rows          []TradeRow `json:"rows"`
	Stats         StatsView  `json:"stats"`
	Message       string     `json:"message,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// TradeRow one line of the trade history table.
type TradeRow struct {
	Time      string `json:"time"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OID       string `json:"oid"`
	Amount    string `json:"amount"`
	Price     string `json:"price"`
	Cost      string `json:"cost"`
	Fee       string `json:"fee"`
	ClosedPnL string `json:"closed_pnl"`
}

// StatsView totals over the filtered trades.
type StatsView struct {
	Count          int    `json:"count"`
	TotalClosedPnL string `json:"total_closed_pnl"`
	TotalFees      string `json:"total_fees"`
	NetPnL         string `json:"net_pnl"`
}

// Options controls rendering.
type Options struct {
	Location *time.Location
}

// Build renders the snapshot through the trade filter. now anchors the trade window.
func Build(s *domain.Snapshot, filter domain.TradeFilter, now time.Time, opts Options) Page {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	page := Page{
		SnapshotID:  s.ID,
		Wallet:      s.Wallet,
		WalletShort: ShortWallet(s.Wallet),
		Network:     strings.ToUpper(s.Network),
		LastUpdate:  s.FetchedAt.In(loc).Format(TimeLayout),
		Balance:     buildBalance(s),
		Positions:   buildPositions(s),
		Trades:      buildTrades(s, filter, now, loc),
	}
	return page
}

func buildBalance(s *domain.Snapshot) BalanceView {
	if s.Balance == nil {
		return BalanceView{Warning: MsgBalanceUnavailable, Error: s.BalanceErr}
	}
	b := s.Balance
	usage := b.MarginUsagePercent()
	usageF, _ := usage.Float64()
	return BalanceView{
		Available:          true,
		Total:              Money(b.Total),
		Free:               Money(b.Free),
		Used:               Money(b.Used),
		MarginUsage:        usageF / 100,
		MarginUsagePercent: Percent(usage, 1),
	}
}

func buildPositions(s *domain.Snapshot) PositionsView {
	summary := domain.SummarizePositions(s.Positions)
	v := PositionsView{
		Count:              summary.Count,
		TotalUnrealizedPnL: Money(summary.TotalUnrealizedPnL),
		TotalPnLPositive:   !summary.TotalUnrealizedPnL.IsNegative(),
		TotalNotional:      Money(summary.TotalNotional),
		Error:              s.PositionsErr,
		Rows: lo.Map(s.Positions, func(p domain.Position, _ int) PositionRow {
			row := PositionRow{
				Symbol:        p.Symbol,
				Side:          strings.ToUpper(p.Side.String()),
				Size:          Size(p.Size),
				EntryPrice:    Money(p.EntryPrice),
				MarkPrice:     Money(p.MarkPrice),
				Notional:      Money(p.Notional),
				UnrealizedPnL: Money(p.UnrealizedPnL),
				PnLPercent:    Percent(p.PnLPercent, 2),
				Profitable:    p.IsProfitable(),
			}
			row.Details = positionDetails(row)
			return row
		}),
	}
	if summary.Count == 0 {
		v.Message = MsgNoPositions
	}
	return v
}

// positionDetails renders the expanded per-position summary lines.
func positionDetails(r PositionRow) []string {
	marker := "🔴"
	if r.Profitable {
		marker = "🟢"
	}
	return []string{
		fmt.Sprintf("Size: %s contracts", r.Size),
		fmt.Sprintf("Entry: %s | Mark: %s", r.EntryPrice, r.MarkPrice),
		fmt.Sprintf("Notional: %s", r.Notional),
		fmt.Sprintf("%s PnL: %s (%s)", marker, r.UnrealizedPnL, r.PnLPercent),
	}
}

func buildTrades(s *domain.Snapshot, filter domain.TradeFilter, now time.Time, loc *time.Location) TradesView {
	days := domain.ClampDays(filter.Days)
	windowed := domain.TradeFilter{Days: days}.Apply(s.Trades, now)
	filtered := domain.TradeFilter{Days: days, Symbol: filter.Symbol, Side: filter.Side}.Apply(windowed, now)
	stats := domain.ComputeTradeStats(filtered)

	v := TradesView{
		Days:          days,
		Total:         len(windowed),
		SymbolOptions: append([]string{domain.FilterAll}, domain.UniqueSymbols(windowed)...),
		SideOptions:   []string{domain.FilterAll, "BUY", "SELL"},
		Symbol:        normalizeOption(filter.Symbol),
		Side:          sideOption(filter.Side),
		Error:         s.TradesErr,
		Rows: lo.Map(filtered, func(t domain.Trade, _ int) TradeRow {
			return tradeRow(t, loc)
		}),
		Stats: StatsView{
			Count:          stats.Count,
			TotalClosedPnL: Money(stats.TotalClosedPnL),
			TotalFees:      FeeMoney(stats.TotalFees),
			NetPnL:         Money(stats.NetPnL),
		},
	}
	if len(windowed) == 0 {
		v.Message = fmt.Sprintf(msgNoTradesFmt, days)
	}
	return v
}

func tradeRow(t domain.Trade, loc *time.Location) TradeRow {
	oid := t.OrderID
	if oid == "" {
		oid = notAvailable
	}
	return TradeRow{
		Time:      t.Timestamp.In(loc).Format(TimeLayout),
		Symbol:    t.Symbol,
		Side:      strings.ToUpper(t.Side.String()),
		OID:       oid,
		Amount:    Size(t.Amount),
		Price:     Money(t.Price),
		Cost:      Money(t.Cost),
		Fee:       FeeMoney(t.Fee),
		ClosedPnL: Money(t.ClosedPnL),
	}
}

func sideOption(s string) string {
	side, ok := domain.ParseTradeSide(s)
	if !ok {
		return domain.FilterAll
	}
	return strings.ToUpper(side.String())
}

func normalizeOption(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.FilterAll
	}
	return s
}
