package reports

import (
	"context"
	"io"

	"github.com/rmax-ai/restock/pkg/engine"
)

type ReportType string

const (
	ReportTypeShoppingList ReportType = "shopping_list"
	ReportTypeInventory    ReportType = "inventory"
	ReportTypeHistory      ReportType = "history"
)

type ReportParams struct {
	Filters map[string]interface{}
}

// ReportSource defines the data access required by reports.
type ReportSource interface {
	ListItems(ctx context.Context) ([]engine.Item, error)
	GetItem(ctx context.Context, id string) (engine.Item, error)
	ShoppingList(ctx context.Context) ([]engine.ShoppingEntry, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
