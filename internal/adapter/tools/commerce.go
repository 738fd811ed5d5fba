package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// SearchWellnessProducts finds wellness products matching a query. Search is
// read-only; purchasing goes through CommerceBuy.
type SearchWellnessProducts struct {
	log *slog.Logger
}

func (t *SearchWellnessProducts) Name() string { return "search_wellness_products" }

func (t *SearchWellnessProducts) Description() string {
	return "Search the wellness catalog for products matching a query."
}

func (t *SearchWellnessProducts) RequiresApproval() bool { return false }

func (t *SearchWellnessProducts) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search terms"},
			"max_price": {"type": "number", "description": "Maximum unit price in USD"}
		},
		"required": ["query"]
	}`)
}

func (t *SearchWellnessProducts) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Query    string  `json:"query"`
		MaxPrice float64 `json:"max_price"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, fmt.Errorf("%w: query is required", tool.ErrExecution)
	}

	products := []map[string]any{
		{"sku": "WL-1001", "name": "Magnesium glycinate 120ct", "price_usd": 18.99},
		{"sku": "WL-2040", "name": "Weighted sleep mask", "price_usd": 24.50},
		{"sku": "WL-3307", "name": "Herbal wind-down tea", "price_usd": 9.75},
	}
	if in.MaxPrice > 0 {
		var filtered []map[string]any
		for _, p := range products {
			if p["price_usd"].(float64) <= in.MaxPrice {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	t.log.Debug("product search", "tool", t.Name(), "query", in.Query, "results", len(products))
	return encodeOutput(map[string]any{"results": products})
}

// CommerceBuy places an order. Spending the user's money always requires
// approval.
type CommerceBuy struct {
	log *slog.Logger
}

func (t *CommerceBuy) Name() string { return "commerce_buy" }

func (t *CommerceBuy) Description() string {
	return "Purchase a product by SKU on the user's behalf."
}

func (t *CommerceBuy) RequiresApproval() bool { return true }

func (t *CommerceBuy) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"sku": {"type": "string", "description": "Product SKU to purchase"},
			"quantity": {"type": "integer", "minimum": 1}
		},
		"required": ["sku"]
	}`)
}

func (t *CommerceBuy) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.SKU == "" {
		return nil, fmt.Errorf("%w: sku is required", tool.ErrExecution)
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	orderID := uuid.NewString()
	t.log.Info("order placed", "tool", t.Name(), "sku", in.SKU, "quantity", in.Quantity, "order_id", orderID)

	return encodeOutput(map[string]any{
		"status":   "ordered",
		"order_id": orderID,
		"sku":      in.SKU,
		"quantity": in.Quantity,
	})
}
