// Package export writes trade history in portable formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

const fileTimeLayout = "20060102_150405"

// TradeHeaders column names of the trade CSV.
func TradeHeaders() []string {
	return []string{"Time", "Symbol", "Side", "OID", "TID", "Amount", "Price", "Cost", "Fee", "Closed PnL"}
}

func tradeRecord(t domain.Trade, loc *time.Location) []string {
	return []string{
		t.Timestamp.In(loc).Format(time.RFC3339),
		t.Symbol,
		strings.ToUpper(t.Side.String()),
		t.OrderID,
		t.TradeID,
		t.Amount.String(),
		t.Price.String(),
		t.Cost.String(),
		t.Fee.String(),
		t.ClosedPnL.String(),
	}
}

// WriteTradesCSV writes the header and one record per trade. Numbers keep full precision.
func WriteTradesCSV(w io.Writer, trades []domain.Trade, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(TradeHeaders()); err != nil {
		return errors.Wrap(err, "write csv headers")
	}
	for _, t := range trades {
		if err := writer.Write(tradeRecord(t, loc)); err != nil {
			return errors.Wrapf(err, "write trade %s", t.TradeID)
		}
	}
	writer.Flush()

	return errors.Wrap(writer.Error(), "flush csv")
}

// Filename builds the download name for a filtered export, e.g. trades_BTC_sell_20250310_120000.csv.
func Filename(filter domain.TradeFilter, now time.Time) string {
	parts := []string{"trades"}
	if filter.Symbol != "" && filter.Symbol != domain.FilterAll {
		base, _, _ := strings.Cut(filter.Symbol, "/")
		parts = append(parts, sanitize(base))
	}
	if side, ok := domain.ParseTradeSide(filter.Side); ok {
		parts = append(parts, side.String())
	}
	if len(parts) == 1 {
		parts = append(parts, "all")
	}
	return fmt.Sprintf("%s_%s.csv", strings.Join(parts, "_"), now.UTC().Format(fileTimeLayout))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
