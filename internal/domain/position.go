package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position open perp position as reported by the exchange.
type Position struct {
	Symbol        string          `json:"symbol"`
	Side          PositionSide    `json:"side"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	Notional      decimal.Decimal `json:"notional"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"pnl_percent"`
}

// NewPositionFromSignedSize builds a position from the exchange signed size,
// negative meaning short. Zero size is rejected.
func NewPositionFromSignedSize(symbol string, signedSize, entryPrice, markPrice, notional, upnl, pnlPercent decimal.Decimal) (Position, error) {
	if signedSize.IsZero() {
		return Position{}, errors.New("position size must not be zero")
	}
	if symbol == "" {
		return Position{}, errors.New("position symbol is required")
	}

	side := PositionSideLong
	if signedSize.IsNegative() {
		side = PositionSideShort
	}

	return Position{
		Symbol:        symbol,
		Side:          side,
		Size:          signedSize.Abs(),
		EntryPrice:    entryPrice,
		MarkPrice:     markPrice,
		Notional:      notional.Abs(),
		UnrealizedPnL: upnl,
		PnLPercent:    pnlPercent,
	}, nil
}

// IsProfitable reports whether unrealized PnL is non-negative.
func (p Position) IsProfitable() bool {
	return !p.UnrealizedPnL.IsNegative()
}

// PositionSummary aggregates the open positions.
type PositionSummary struct {
	Count              int             `json:"count"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	TotalNotional      decimal.Decimal `json:"total_notional"`
}

// SummarizePositions computes count and totals.
func SummarizePositions(positions []Position) PositionSummary {
	summary := PositionSummary{
		Count:              len(positions),
		TotalUnrealizedPnL: decimal.Zero,
		TotalNotional:      decimal.Zero,
	}
	for _, p := range positions {
		summary.TotalUnrealizedPnL = summary.TotalUnrealizedPnL.Add(p.UnrealizedPnL)
		summary.TotalNotional = summary.TotalNotional.Add(p.Notional)
	}
	return summary
}
