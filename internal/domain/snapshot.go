package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot result of one refresh cycle. Sections that failed carry an error message
// and keep their zero value.
type Snapshot struct {
	ID              string     `json:"id"`
	Wallet          string     `json:"wallet"`
	Network         string     `json:"network"`
	FetchedAt       time.Time  `json:"fetched_at"`
	Balance         *Balance   `json:"balance,omitempty"`
	Positions       []Position `json:"positions"`
	Trades          []Trade    `json:"trades"`
	TradeWindowDays int        `json:"trade_window_days"`
	BalanceErr      string     `json:"balance_error,omitempty"`
	PositionsErr    string     `json:"positions_error,omitempty"`
	TradesErr       string     `json:"trades_error,omitempty"`
}

// NewSnapshot creates an empty snapshot stamped with a fresh id.
func NewSnapshot(wallet, network string, fetchedAt time.Time, tradeWindowDays int) *Snapshot {
	return &Snapshot{
		ID:              uuid.NewString(),
		Wallet:          wallet,
		Network:         network,
		FetchedAt:       fetchedAt,
		Positions:       []Position{},
		Trades:          []Trade{},
		TradeWindowDays: ClampDays(tradeWindowDays),
	}
}

// Healthy reports whether every section was fetched.
func (s *Snapshot) Healthy() bool {
	return s != nil && s.BalanceErr == "" && s.PositionsErr == "" && s.TradesErr == ""
}

// EquityPoint is the persisted account equity for the history chart.
// String fields avoid precision issues when rendered in UI layers.
type EquityPoint struct {
	Timestamp     time.Time `json:"ts"`
	Wallet        string    `json:"wallet"`
	Network       string    `json:"network"`
	Total         string    `json:"total"`
	Free          string    `json:"free"`
	Used          string    `json:"used"`
	UnrealizedPnL string    `json:"unrealized_pnl,omitempty"`
}

// NewEquityPoint derives the equity point from a snapshot. It returns false when the
// balance section is missing.
func NewEquityPoint(s *Snapshot) (EquityPoint, bool) {
	if s == nil || s.Balance == nil {
		return EquityPoint{}, false
	}
	summary := SummarizePositions(s.Positions)
	return EquityPoint{
		Timestamp:     s.FetchedAt,
		Wallet:        s.Wallet,
		Network:       s.Network,
		Total:         s.Balance.Total.StringFixed(2),
		Free:          s.Balance.Free.StringFixed(2),
		Used:          s.Balance.Used.StringFixed(2),
		UnrealizedPnL: summary.TotalUnrealizedPnL.StringFixed(2),
	}, true
}

// EquityPointRecord bundles a point with the log index it originated from.
type EquityPointRecord struct {
	Index uint64
	Point EquityPoint
}
