// Package report renders stored strategies and trades as terminal tables.
package report

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"signalrelay/src/model"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// Strategies prints one row per strategy with its trade count. Passwords are never printed.
func Strategies(w io.Writer, list []model.Strategy, tradeCounts map[uint]int64) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Status", "Account", "Server", "Risk %", "Commission", "Trades", "Websocket"})
	for _, s := range list {
		t.AppendRow(table.Row{s.ID, s.Name, s.Status, s.AccountID, s.Server, s.RiskPercentage, s.Commission, tradeCounts[s.ID], s.WebsocketURL})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.AppendFooter(table.Row{"", "Total", len(list)})
	t.Render()
}

// Trades prints a strategy's trades in the order given.
func Trades(w io.Writer, list []model.Trade) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Time", "Order", "Symbol", "Action", "Volume", "Price", "SL", "TP"})
	for _, tr := range list {
		t.AppendRow(table.Row{
			tr.ID,
			tr.Timestamp.UTC().Format(time.RFC3339),
			tr.VenueOrderID,
			tr.Symbol,
			tr.Action,
			tr.Volume,
			tr.Price,
			tr.StopLoss,
			tr.TakeProfit,
		})
	}
	t.AppendFooter(table.Row{"", "Total", len(list)})
	t.Render()
}
