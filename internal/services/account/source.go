// Package account reads balance, open positions and fills of a Hyperliquid wallet
// and maps them onto domain records.
package account

import (
	"context"
	"time"
)

// marginState is the subset of the clearinghouse state the monitor needs.
// Numeric values are kept as the exchange's decimal strings.
type marginState struct {
	AccountValue    string
	TotalMarginUsed string
	Withdrawable    string
	Positions       []assetPosition
}

type assetPosition struct {
	Coin           string
	Szi            string
	EntryPx        string
	PositionValue  string
	UnrealizedPnl  string
	ReturnOnEquity string
}

type fill struct {
	Coin      string
	Px        string
	Sz        string
	Side      string
	Time      int64
	Oid       int64
	Tid       int64
	Fee       string
	ClosedPnl string
}

// source is the exchange boundary. The production implementation wraps the SDK Info client.
type source interface {
	MarginState(ctx context.Context, address string) (*marginState, error)
	FillsSince(ctx context.Context, address string, since time.Time) ([]fill, error)
	Mids(ctx context.Context) (map[string]string, error)
}
