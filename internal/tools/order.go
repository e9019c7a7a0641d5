package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/northstar-market/concierge/internal/facade"
)

// QueryOrderTool fetches one order by its human-facing order number.
type QueryOrderTool struct {
	Orders facade.OrderService
}

func (t *QueryOrderTool) Name() string        { return "query_order" }
func (t *QueryOrderTool) Description() string { return "Fetch one order by human order number" }
func (t *QueryOrderTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"order_no": map[string]any{"type": "string"}},
		"required":   []string{"order_no"},
	}
}

func (t *QueryOrderTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		OrderNo string `json:"order_no"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid query_order arguments: %w", err)
	}
	if args.OrderNo == "" {
		return nil, fmt.Errorf("order_no is required")
	}
	order, err := t.Orders.Get(ctx, args.OrderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s not found", args.OrderNo)
	}
	return order, nil
}

// GetLogisticsTool reports the delivery status of one order.
type GetLogisticsTool struct {
	Orders facade.OrderService
}

func (t *GetLogisticsTool) Name() string        { return "get_logistics" }
func (t *GetLogisticsTool) Description() string { return "Delivery status of one order" }
func (t *GetLogisticsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"order_no": map[string]any{"type": "string"}},
		"required":   []string{"order_no"},
	}
}

func (t *GetLogisticsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		OrderNo string `json:"order_no"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid get_logistics arguments: %w", err)
	}
	if args.OrderNo == "" {
		return nil, fmt.Errorf("order_no is required")
	}
	order, err := t.Orders.Get(ctx, args.OrderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s not found", args.OrderNo)
	}
	return map[string]any{
		"order_no": order.OrderNo,
		"status":   order.Status,
	}, nil
}
