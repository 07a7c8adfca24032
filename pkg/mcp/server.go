package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/restock/pkg/client"
)

const (
	shoppingListURI = "restock://shopping-list"
	alertsURI       = "restock://alerts"
	itemsURI        = "restock://items"
	promptName      = "restock-aware"
)

// Server adapts restock-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"restock",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// SetToken sets the bearer token used against the daemon.
func (s *Server) SetToken(token string) {
	s.apiClient.SetToken(token)
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		shoppingListURI,
		"Shopping List",
		mcp.WithResourceDescription("Items below their minimum quantity, most urgent first"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadShoppingList)

	s.mcpServer.AddResource(mcp.NewResource(
		alertsURI,
		"Stock Alerts",
		mcp.WithResourceDescription("Items that are low on stock or have not been counted recently"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadAlerts)

	s.mcpServer.AddResource(mcp.NewResource(
		itemsURI,
		"Inventory",
		mcp.WithResourceDescription("Every tracked item with its current quantity"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadItems)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"get_prediction",
		mcp.WithDescription("Predict when an item runs out and by when it must be bought."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("The item to forecast")),
	), s.handleGetPrediction)

	s.mcpServer.AddTool(mcp.NewTool(
		"record_quantity",
		mcp.WithDescription("Record a freshly counted quantity for an item."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("The item that was counted")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("The quantity on hand, in the item's unit")),
	), s.handleRecordQuantity)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains restock concepts (items, minimums, predictions, urgency)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadShoppingList(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := s.apiClient.ShoppingList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shopping list: %w", err)
	}
	return jsonContents(request.Params.URI, list)
}

func (s *Server) handleReadAlerts(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	alerts, err := s.apiClient.Alerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts: %w", err)
	}
	return jsonContents(request.Params.URI, alerts)
}

func (s *Server) handleReadItems(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	items, err := s.apiClient.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	return jsonContents(request.Params.URI, items)
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGetPrediction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID := strings.TrimSpace(mcp.ParseString(request, "item_id", ""))
	if itemID == "" {
		return mcp.NewToolResultError("item_id is required"), nil
	}

	pred, err := s.apiClient.Forecast(ctx, itemID)
	if err != nil {
		return toolError(itemID, err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Item: %s\n", pred.ItemName)
	fmt.Fprintf(&b, "Urgency: %s\n", pred.Urgency)
	if pred.DaysRemaining >= 999 {
		b.WriteString("Days remaining: unknown (no usage data)\n")
	} else {
		fmt.Fprintf(&b, "Days remaining: %.1f\n", pred.DaysRemaining)
	}
	fmt.Fprintf(&b, "Purchase by: %s\n", pred.PurchaseBy.Format("2006-01-02"))
	fmt.Fprintf(&b, "Confidence: %.2f (%s)\n", pred.Confidence, pred.Source)
	if pred.NeedsTracking {
		b.WriteString("Record a few more quantity counts to improve this forecast.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleRecordQuantity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID := strings.TrimSpace(mcp.ParseString(request, "item_id", ""))
	if itemID == "" {
		return mcp.NewToolResultError("item_id is required"), nil
	}
	if _, ok := request.GetArguments()["quantity"]; !ok {
		return mcp.NewToolResultError("quantity is required"), nil
	}
	quantity := mcp.ParseFloat64(request, "quantity", 0)
	if quantity < 0 {
		return mcp.NewToolResultError("quantity must not be negative"), nil
	}

	item, err := s.apiClient.RecordQuantity(ctx, itemID, quantity)
	if err != nil {
		return toolError(itemID, err), nil
	}

	msg := fmt.Sprintf("Recorded %s: %g %s", item.Name, item.CurrentQuantity, item.Unit)
	if item.IsLowStock() {
		msg += fmt.Sprintf(" (below minimum of %g)", item.MinimumQuantity)
	}
	return mcp.NewToolResultText(msg), nil
}

func toolError(itemID string, err error) *mcp.CallToolResult {
	if client.IsNotFound(err) {
		return mcp.NewToolResultError(fmt.Sprintf("no item with id %q", itemID))
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %s", apiErr.Code))
	}
	return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err))
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are helping manage a household inventory tracked by restock.

Concepts:
- Item: a supply with a current quantity, a unit and a minimum quantity.
- Low stock: the current quantity is below the minimum. Critical: nothing left.
- Prediction: days until the item runs out, learned from past counts or taken
  from the usage rate the user declared. Confidence is between 0 and 1.
- Purchase by: the last day to buy, leaving a buffer for hard-to-find items.

Read restock://shopping-list before suggesting purchases and restock://alerts
to see which items need counting. When the user reports how much of something
is left, use the 'record_quantity' tool. Use 'get_prediction' to answer
questions about when an item will run out.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
