package reports

import (
	"fmt"
)

// NewReportGenerator creates a report generator based on the report type.
func NewReportGenerator(reportType ReportType, src ReportSource) (Generator, error) {
	switch reportType {
	case ReportTypeShoppingList:
		return NewShoppingListReport(src), nil
	case ReportTypeInventory:
		return NewInventoryReport(src), nil
	case ReportTypeHistory:
		return NewHistoryReport(src), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}
