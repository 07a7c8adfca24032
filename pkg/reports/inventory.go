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

// InventoryReport generates a CSV snapshot of every item.
type InventoryReport struct {
	src ReportSource
}

// NewInventoryReport creates a new InventoryReport generator.
func NewInventoryReport(src ReportSource) *InventoryReport {
	return &InventoryReport{src: src}
}

// Generate writes one row per item. The category filter, when set,
// restricts the rows to that category.
func (r *InventoryReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"id", "name", "category", "current_quantity", "minimum_quantity", "unit", "acquisition_difficulty", "observations", "last_check", "updated_at"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	category, _ := params.Filters["category"].(string)

	items, err := r.src.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	for _, item := range items {
		if category != "" && item.Category != category {
			continue
		}

		h := item.History()
		lastCheck := ""
		if at, ok := h.LastCheck(); ok {
			lastCheck = at.UTC().Format(time.RFC3339)
		}

		row := []string{
			item.ID,
			item.Name,
			item.Category,
			formatFloat(item.CurrentQuantity),
			formatFloat(item.MinimumQuantity),
			item.Unit,
			strconv.Itoa(int(item.AcquisitionDifficulty)),
			strconv.Itoa(len(h)),
			lastCheck,
			item.UpdatedAt.UTC().Format(time.RFC3339),
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
