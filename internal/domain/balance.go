package domain

import "github.com/shopspring/decimal"

// SettlementCurrency is the collateral currency of Hyperliquid perps.
const SettlementCurrency = "USDC"

var hundred = decimal.NewFromInt(100)

// Balance account collateral snapshot.
type Balance struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Free     decimal.Decimal `json:"free"`
	Used     decimal.Decimal `json:"used"`
}

// NewBalance creates a USDC balance. Free falls back to total minus used when unknown.
func NewBalance(total, free, used decimal.Decimal, freeKnown bool) Balance {
	if !freeKnown {
		free = total.Sub(used)
		if free.IsNegative() {
			free = decimal.Zero
		}
	}
	return Balance{
		Currency: SettlementCurrency,
		Total:    total,
		Free:     free,
		Used:     used,
	}
}

// MarginUsagePercent returns used margin as a percentage of total collateral.
func (b Balance) MarginUsagePercent() decimal.Decimal {
	if !b.Total.IsPositive() {
		return decimal.Zero
	}
	return b.Used.Div(b.Total).Mul(hundred)
}
