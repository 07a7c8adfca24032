package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrMissingItem is returned when a history report has no item_id filter.
var ErrMissingItem = errors.New("item_id filter is required")

// HistoryReport generates a CSV of one item's quantity observations.
type HistoryReport struct {
	src ReportSource
}

// NewHistoryReport creates a new HistoryReport generator.
func NewHistoryReport(src ReportSource) *HistoryReport {
	return &HistoryReport{src: src}
}

// Generate writes the observations of the item named by the item_id filter,
// oldest first. Records without a quantity are written with an empty cell.
func (r *HistoryReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	id, _ := params.Filters["item_id"].(string)
	if id == "" {
		return nil, ErrMissingItem
	}

	item, err := r.src.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write([]string{"date", "quantity", "change"}); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for _, o := range item.History() {
		quantity := ""
		if o.Quantity != nil {
			quantity = formatFloat(*o.Quantity)
		}
		row := []string{o.Date, quantity, formatFloat(o.Delta())}
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
