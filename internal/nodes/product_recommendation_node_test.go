package nodes

import (
	"context"
	"fmt"
	"testing"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

type fakeProductService struct {
	search func(ctx context.Context, p facade.ProductSearchParams) (facade.Page[facade.Product], error)
	get    func(ctx context.Context, productID string) (*facade.Product, error)
}

func (f *fakeProductService) Search(ctx context.Context, p facade.ProductSearchParams) (facade.Page[facade.Product], error) {
	return f.search(ctx, p)
}
func (f *fakeProductService) Get(ctx context.Context, productID string) (*facade.Product, error) {
	return f.get(ctx, productID)
}

func TestProductRecommendationNode_UsesToolResultWhenPresent(t *testing.T) {
	n := &ProductRecommendationNode{LLM: &staticProvider{resp: llm.Message{Content: "为您推荐几款商品"}}}
	s := state.ConversationState{
		ToolResult: []state.ToolResult{{
			Tool: "search_products",
			Result: map[string]any{
				"items": []any{
					map[string]any{"product_id": "p1", "title": "Widget", "price": 9.99, "status": "published"},
				},
			},
		}},
	}
	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.QuickActions) != 1 || out.QuickActions[0].Label != "Widget" {
		t.Fatalf("expected one product card, got %+v", out.QuickActions)
	}
	if out.QuickActions[0].Data["title"] != "Widget" {
		t.Fatalf("expected title in card data, got %+v", out.QuickActions[0].Data)
	}
	if len(out.RecommendedProducts) != 1 || out.RecommendedProducts[0] != "p1" {
		t.Fatalf("unexpected recommended products %+v", out.RecommendedProducts)
	}
}

func TestProductRecommendationNode_AppendsViewMoreWhenOverLimit(t *testing.T) {
	var items []any
	var products []facade.Product
	for i := 0; i < maxProductCards+3; i++ {
		id := fmt.Sprintf("p%d", i)
		items = append(items, map[string]any{"product_id": id, "title": id, "price": 1.0, "status": "published"})
		products = append(products, facade.Product{ProductID: id, Title: id, Price: 1.0})
	}
	n := &ProductRecommendationNode{LLM: &staticProvider{resp: llm.Message{Content: "为您推荐几款商品"}}}
	s := state.ConversationState{
		ToolResult: []state.ToolResult{{Tool: "search_products", Result: map[string]any{"items": items}}},
	}
	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.QuickActions) != maxProductCards+1 {
		t.Fatalf("expected %d product cards plus a view-more action, got %d", maxProductCards, len(out.QuickActions))
	}
	last := out.QuickActions[len(out.QuickActions)-1]
	if last.Type != "button" || last.Action != "view_more_products" {
		t.Fatalf("expected trailing view-more button, got %+v", last)
	}
}

func TestProductRecommendationNode_FallsBackToDirectSearch(t *testing.T) {
	n := &ProductRecommendationNode{
		LLM: &staticProvider{resp: llm.Message{Content: "热门推荐"}},
		Products: &fakeProductService{
			search: func(ctx context.Context, p facade.ProductSearchParams) (facade.Page[facade.Product], error) {
				return facade.Page[facade.Product]{Items: []facade.Product{{ProductID: "p2", Title: "Gadget", Price: 19.99}}}, nil
			},
		},
	}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "耳机推荐"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.QuickActions) != 1 {
		t.Fatalf("expected fallback search results, got %+v", out.QuickActions)
	}
}

func TestProductRecommendationNode_NoProductsUsesDefaultSentence(t *testing.T) {
	n := &ProductRecommendationNode{
		LLM: &staticProvider{},
		Products: &fakeProductService{
			search: func(ctx context.Context, p facade.ProductSearchParams) (facade.Page[facade.Product], error) {
				return facade.Page[facade.Product]{}, nil
			},
		},
	}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "xyz"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != defaultRecommendationSentence(0) {
		t.Fatalf("expected default sentence, got %q", out.Response)
	}
}
