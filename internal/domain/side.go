// Package domain defines the account records shown by the monitor.
package domain

import "strings"

// PositionSide direction of an open position.
type PositionSide string

const (
	// PositionSideLong long position.
	PositionSideLong PositionSide = "long"
	// PositionSideShort short position.
	PositionSideShort PositionSide = "short"
)

// String returns the string representation.
func (s PositionSide) String() string {
	return string(s)
}

// TradeSide direction of a fill.
type TradeSide string

const (
	// TradeSideBuy buy fill.
	TradeSideBuy TradeSide = "buy"
	// TradeSideSell sell fill.
	TradeSideSell TradeSide = "sell"
)

// String returns the string representation.
func (s TradeSide) String() string {
	return string(s)
}

// ParseTradeSide accepts buy/sell in any case as well as the exchange codes B and A.
func ParseTradeSide(s string) (TradeSide, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b":
		return TradeSideBuy, true
	case "sell", "a":
		return TradeSideSell, true
	default:
		return "", false
	}
}
