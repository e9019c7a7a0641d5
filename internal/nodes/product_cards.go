package nodes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/state"
)

var firstTokenPattern = regexp.MustCompile(`[\p{Han}]+|[A-Za-z0-9]+`)

// extractKeyword pulls the first Chinese or ASCII token out of a message,
// used as a fallback search keyword when the function-calling node didn't
// already run search_products.
func extractKeyword(message string) string {
	return firstTokenPattern.FindString(message)
}

// productsFromToolResult looks for a successful search_products call in
// tool_result and, if present, decodes its product list.
func productsFromToolResult(results []state.ToolResult) []facade.Product {
	for _, r := range results {
		if r.Tool != "search_products" || r.Error != "" || r.Result == nil {
			continue
		}
		m, ok := r.Result.(map[string]any)
		if !ok {
			continue
		}
		items, ok := m["items"].([]any)
		if !ok {
			continue
		}
		out := make([]facade.Product, 0, len(items))
		for _, raw := range items {
			im, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, facade.Product{
				ProductID: stringField(im, "product_id"),
				Title:     stringField(im, "title"),
				Price:     floatField(im, "price"),
				Status:    stringField(im, "status"),
			})
		}
		return out
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

// buildProductCards composes up to limit product quick-actions, plus a
// trailing "view more" action when products exceeds limit.
func buildProductCards(products []facade.Product, limit int) []state.QuickAction {
	shown := limit
	if shown <= 0 || shown > len(products) {
		shown = len(products)
	}
	cards := make([]state.QuickAction, 0, shown+1)
	for _, p := range products[:shown] {
		cards = append(cards, state.QuickAction{
			Type:   "product",
			Label:  p.Title,
			Action: "view_product",
			Data: map[string]any{
				"product_id": p.ProductID,
				"title":      p.Title,
				"price":      p.Price,
			},
		})
	}
	if limit > 0 && len(products) > shown {
		cards = append(cards, state.QuickAction{
			Type:   "button",
			Label:  "查看更多",
			Action: "view_more_products",
		})
	}
	return cards
}

func productIDs(products []facade.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ProductID
	}
	return out
}

// matchProductIDs returns the subset of candidate product ids whose title
// or id appears verbatim in text, preserving candidate order.
func matchProductIDs(text string, products []facade.Product) []string {
	var out []string
	for _, p := range products {
		if p.Title != "" && strings.Contains(text, p.Title) {
			out = append(out, p.ProductID)
			continue
		}
		if p.ProductID != "" && strings.Contains(text, p.ProductID) {
			out = append(out, p.ProductID)
		}
	}
	return out
}

func truncateSentence(s string, maxRunes int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes])
}

func defaultRecommendationSentence(count int) string {
	return fmt.Sprintf("为您找到 %d 款相关商品", count)
}
