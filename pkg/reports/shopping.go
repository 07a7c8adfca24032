package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ShoppingListReport generates a CSV of everything that needs buying.
type ShoppingListReport struct {
	src ReportSource
}

// NewShoppingListReport creates a new ShoppingListReport generator.
func NewShoppingListReport(src ReportSource) *ShoppingListReport {
	return &ShoppingListReport{src: src}
}

// Generate writes one row per shopping list entry, in list order.
func (r *ShoppingListReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"id", "name", "current_quantity", "minimum_quantity", "unit", "needed", "suggested", "urgency", "purchase_by", "days_remaining"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	entries, err := r.src.ShoppingList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build shopping list: %w", err)
	}

	for _, e := range entries {
		purchaseBy := ""
		if e.PurchaseBy != nil {
			purchaseBy = e.PurchaseBy.UTC().Format(time.RFC3339)
		}
		daysRemaining := ""
		if e.DaysRemaining != nil {
			daysRemaining = formatFloat(*e.DaysRemaining)
		}

		row := []string{
			e.ID,
			e.Name,
			formatFloat(e.CurrentQuantity),
			formatFloat(e.MinimumQuantity),
			e.Unit,
			formatFloat(e.Needed),
			formatFloat(e.Suggested),
			string(e.Urgency),
			purchaseBy,
			daysRemaining,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
