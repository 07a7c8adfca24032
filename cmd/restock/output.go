package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/rmax-ai/restock/pkg/engine"
)

const dateLayout = "2006-01-02"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	return table
}

func render(table *tablewriter.Table, rows [][]string) error {
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeItemsTable(w io.Writer, items []engine.Item) error {
	table := newTable(w, "ID", "Name", "Category", "Quantity", "Minimum", "Status")
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		status := "ok"
		switch {
		case it.IsCritical():
			status = "critical"
		case it.IsLowStock():
			status = "low"
		}
		rows = append(rows, []string{
			it.ID,
			it.Name,
			it.Category,
			formatFloat(it.CurrentQuantity) + " " + it.Unit,
			formatFloat(it.MinimumQuantity),
			status,
		})
	}
	return render(table, rows)
}

func writeShoppingTable(w io.Writer, list []engine.ShoppingEntry) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "Nothing to buy.")
		return err
	}
	table := newTable(w, "Name", "Have", "Need", "Buy", "Urgency", "Purchase By", "Days Left")
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		by, days := "-", "-"
		if e.PurchaseBy != nil {
			by = e.PurchaseBy.Format(dateLayout)
		}
		if e.DaysRemaining != nil {
			days = formatFloat(*e.DaysRemaining)
		}
		rows = append(rows, []string{
			e.Name,
			formatFloat(e.CurrentQuantity) + " " + e.Unit,
			formatFloat(e.Needed),
			formatFloat(e.Suggested),
			string(e.Urgency),
			by,
			days,
		})
	}
	return render(table, rows)
}

func writeAlertsTable(w io.Writer, alerts []engine.Alert) error {
	if len(alerts) == 0 {
		_, err := fmt.Fprintln(w, "No alerts.")
		return err
	}
	table := newTable(w, "Name", "Quantity", "Low", "Critical", "Needs Check")
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.Name,
			formatFloat(a.CurrentQuantity) + " " + a.Unit,
			yesNo(a.IsLowStock),
			yesNo(a.IsCritical),
			yesNo(a.NeedsQuantityCheck),
		})
	}
	return render(table, rows)
}

func writePrediction(w io.Writer, p engine.ItemPrediction) error {
	days := fmt.Sprintf("%.1f", p.DaysRemaining)
	if p.DaysRemaining >= 999 {
		days = "unknown"
	}
	lines := [][2]string{
		{"Item", p.ItemName},
		{"Days remaining", days},
		{"Purchase by", p.PurchaseBy.Format(dateLayout)},
		{"Urgency", string(p.Urgency)},
		{"Confidence", fmt.Sprintf("%.2f (%s)", p.Confidence, p.Source)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-15s %s\n", l[0]+":", l[1]); err != nil {
			return err
		}
	}
	if p.NeedsTracking {
		_, err := fmt.Fprintln(w, "Record more counts to improve this forecast.")
		return err
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
