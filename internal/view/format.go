package view

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	// TimeLayout used for every timestamp shown to the user.
	TimeLayout = "2006-01-02 15:04:05"

	moneyFormat    = "#,###.##"
	feeFormat      = "#,###.####"
	sizeDecimals   = 6
	shortWalletLen = 10
	notAvailable   = "N/A"
)

// Money renders an amount as dollars with thousands separators, e.g. -$1,234.50.
func Money(d decimal.Decimal) string {
	return signedDollar(d, moneyFormat)
}

// FeeMoney renders a fee with four decimals.
func FeeMoney(d decimal.Decimal) string {
	return signedDollar(d, feeFormat)
}

func signedDollar(d decimal.Decimal, format string) string {
	f, _ := d.Abs().Float64()
	s := "$" + humanize.FormatFloat(format, f)
	if d.IsNegative() && strings.Trim(s, "$0.,") != "" {
		return "-" + s
	}
	return s
}

// Percent renders a percentage with the given decimals.
func Percent(d decimal.Decimal, decimals int32) string {
	return d.StringFixed(decimals) + "%"
}

// Size renders a contract amount with six decimals.
func Size(d decimal.Decimal) string {
	return d.Abs().StringFixed(sizeDecimals)
}

// ShortWallet keeps the first characters of an address, e.g. 0xf39Fd6e5...
func ShortWallet(addr string) string {
	if len(addr) <= shortWalletLen {
		return addr
	}
	return addr[:shortWalletLen] + "..."
}
