// Package report prints a rendered page as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/vadiminshakov/riskwatch/internal/view"
)

// Render writes the balance, positions and trades sections to w.
func Render(w io.Writer, page view.Page) error {
	if _, err := fmt.Fprintf(w, "Wallet: %s  Network: %s  Last update: %s\n\n", page.Wallet, page.Network, page.LastUpdate); err != nil {
		return err
	}

	renderBalance(w, page.Balance)
	renderPositions(w, page.Positions)
	renderTrades(w, page.Trades)
	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s ==\n", title)
}

func keyValueTable(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.AppendBulk(rows)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()
}

func renderBalance(w io.Writer, b view.BalanceView) {
	section(w, "Account Balance")
	if !b.Available {
		fmt.Fprintln(w, b.Warning)
		if b.Error != "" {
			fmt.Fprintf(w, "  (%s)\n", b.Error)
		}
		return
	}
	keyValueTable(w, [][]string{
		{"Total Balance", b.Total},
		{"Free", b.Free},
		{"Used", b.Used},
		{"Margin Usage", b.MarginUsagePercent},
	})
}

func renderPositions(w io.Writer, p view.PositionsView) {
	section(w, "Open Positions")
	if p.Error != "" {
		fmt.Fprintf(w, "Unable to fetch open positions (%s)\n", p.Error)
		return
	}
	if p.Message != "" {
		fmt.Fprintln(w, p.Message)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Side", "Size", "Entry Price", "Mark Price", "Notional", "Unrealized PnL", "PnL %"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk(lo.Map(p.Rows, func(r view.PositionRow, _ int) []string {
		return []string{r.Symbol, r.Side, r.Size, r.EntryPrice, r.MarkPrice, r.Notional, r.UnrealizedPnL, r.PnLPercent}
	}))
	table.SetFooter([]string{"Total", strconv.Itoa(p.Count), "", "", "", p.TotalNotional, p.TotalUnrealizedPnL, ""})
	table.Render()
}

func renderTrades(w io.Writer, t view.TradesView) {
	section(w, fmt.Sprintf("Trade History (last %d days, symbol %s, side %s)", t.Days, t.Symbol, t.Side))
	if t.Error != "" {
		fmt.Fprintf(w, "Unable to fetch trade history (%s)\n", t.Error)
		return
	}
	if t.Message != "" {
		fmt.Fprintln(w, t.Message)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Symbol", "Side", "OID", "Amount", "Price", "Cost", "Fee", "Closed PnL"})
	table.AppendBulk(lo.Map(t.Rows, func(r view.TradeRow, _ int) []string {
		return []string{r.Time, r.Symbol, r.Side, r.OID, r.Amount, r.Price, r.Cost, r.Fee, r.ClosedPnL}
	}))
	table.Render()

	keyValueTable(w, [][]string{
		{"Total Trades", strconv.Itoa(t.Total)},
		{"Filtered", strconv.Itoa(t.Stats.Count)},
		{"Closed PnL", t.Stats.TotalClosedPnL},
		{"Fees", t.Stats.TotalFees},
		{"Net PnL", t.Stats.NetPnL},
	})
}
