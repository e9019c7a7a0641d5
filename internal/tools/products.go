package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/northstar-market/concierge/internal/facade"
)

// SearchProductsTool performs a keyword + filter search of the catalog.
type SearchProductsTool struct {
	Products facade.ProductService
}

func (t *SearchProductsTool) Name() string { return "search_products" }
func (t *SearchProductsTool) Description() string {
	return "Keyword + filter search of product catalog"
}
func (t *SearchProductsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keyword":    map[string]any{"type": "string"},
			"max_price":  map[string]any{"type": "number"},
			"difficulty": map[string]any{"type": "string"},
			"tech_stack": map[string]any{"type": "string"},
		},
		"required": []string{"keyword"},
	}
}

func (t *SearchProductsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Keyword    string   `json:"keyword"`
		MaxPrice   *float64 `json:"max_price"`
		Difficulty string   `json:"difficulty"`
		TechStack  string   `json:"tech_stack"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid search_products arguments: %w", err)
	}
	page, err := t.Products.Search(ctx, facade.ProductSearchParams{
		Keyword:    args.Keyword,
		Status:     "published",
		MaxPrice:   args.MaxPrice,
		Difficulty: args.Difficulty,
		TechStack:  args.TechStack,
		Page:       1,
		PageSize:   10,
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// CheckInventoryTool reports availability for one product.
type CheckInventoryTool struct {
	Products facade.ProductService
}

func (t *CheckInventoryTool) Name() string        { return "check_inventory" }
func (t *CheckInventoryTool) Description() string { return "Availability for one product" }
func (t *CheckInventoryTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"product_id": map[string]any{"type": "string"}},
		"required":   []string{"product_id"},
	}
}

func (t *CheckInventoryTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ProductID string `json:"product_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid check_inventory arguments: %w", err)
	}
	if args.ProductID == "" {
		return nil, fmt.Errorf("product_id is required")
	}
	p, err := t.Products.Get(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %s not found", args.ProductID)
	}
	return map[string]any{
		"product_id": p.ProductID,
		"available":  p.Status == "published",
		"status":     p.Status,
	}, nil
}

// CalculatePriceTool sums product prices with an optional coupon code.
type CalculatePriceTool struct {
	Products facade.ProductService
}

func (t *CalculatePriceTool) Name() string        { return "calculate_price" }
func (t *CalculatePriceTool) Description() string { return "Sum of product prices, optional coupon" }
func (t *CalculatePriceTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"coupon_code": map[string]any{"type": "string"},
		},
		"required": []string{"product_ids"},
	}
}

func (t *CalculatePriceTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ProductIDs []string `json:"product_ids"`
		CouponCode string   `json:"coupon_code"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid calculate_price arguments: %w", err)
	}
	if len(args.ProductIDs) == 0 {
		return nil, fmt.Errorf("product_ids is required")
	}

	var subtotal float64
	items := make([]map[string]any, 0, len(args.ProductIDs))
	for _, id := range args.ProductIDs {
		p, err := t.Products.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("product %s not found", id)
		}
		subtotal += p.Price
		items = append(items, map[string]any{"product_id": p.ProductID, "title": p.Title, "price": p.Price})
	}

	discount := 0.0
	if args.CouponCode != "" {
		discount = couponDiscount(args.CouponCode, subtotal)
	}

	return map[string]any{
		"items":       items,
		"subtotal":    subtotal,
		"discount":    discount,
		"total":       subtotal - discount,
		"coupon_code": args.CouponCode,
	}, nil
}

// couponDiscount is a deliberately simple flat-rate scheme; the marketplace
// platform owns the real coupon engine behind facade.ProductService.
func couponDiscount(code string, subtotal float64) float64 {
	switch code {
	case "SAVE10":
		return subtotal * 0.10
	case "SAVE20":
		return subtotal * 0.20
	default:
		return 0
	}
}
