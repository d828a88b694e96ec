// Package reporting renders session results to the console and to Excel
// trade logs.
package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/perceptrader/mt5-trader/internal/session"
)

// ConsoleReporter prints session outcomes as a table
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintOutcomes renders the per-bar outcome table
func (r *ConsoleReporter) PrintOutcomes(outcomes []session.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("SESSION ORDERS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Time", "Symbol", "Signal", "Side", "Qty", "Price", "Ticket", "State", "Error"})

	for _, out := range outcomes {
		errMsg := ""
		if out.Err != nil {
			errMsg = out.Err.Error()
		}
		t.AppendRow(table.Row{
			out.Timestamp.Format("2006-01-02 15:04"),
			out.Symbol,
			out.Signal,
			out.Side,
			fmt.Sprintf("%.2f", out.Quantity),
			fmt.Sprintf("%.5f", out.Price),
			out.Ticket,
			out.State,
			errMsg,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 9, WidthMax: 48},
	})

	t.Render()
	fmt.Println()
}

// PrintSummary renders the fills/failures count and capital position
func (r *ConsoleReporter) PrintSummary(outcomes []session.Outcome, available, total float64) {
	filled, failed := 0, 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		} else {
			filled++
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("SESSION SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"✅ Orders Filled", filled},
		{"❌ Orders Failed", failed},
		{"💰 Capital Available", fmt.Sprintf("$%.2f", available)},
		{"💰 Capital Total", fmt.Sprintf("$%.2f", total)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 15, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}
