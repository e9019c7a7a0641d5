package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

const maxProductCards = 5

// ProductRecommendationNode composes product cards from whatever the
// function-calling node already found, falling back to a direct search.
type ProductRecommendationNode struct {
	LLM      llm.Provider
	Products facade.ProductService
}

func (n *ProductRecommendationNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	products := productsFromToolResult(s.ToolResult)
	if len(products) == 0 {
		products = n.fallbackSearch(ctx, s.UserMessage)
	}

	cards := buildProductCards(products, maxProductCards)
	s.QuickActions = cards
	s.RecommendedProducts = productIDs(products)
	if len(products) > maxProductCards {
		s.RecommendedProducts = productIDs(products[:maxProductCards])
	}

	s.Response = n.recommendationSentence(ctx, s.UserMessage, products)
	return s, nil
}

func (n *ProductRecommendationNode) fallbackSearch(ctx context.Context, message string) []facade.Product {
	if n.Products == nil {
		return nil
	}
	keyword := extractKeyword(message)
	params := facade.ProductSearchParams{Status: "published", Page: 1, PageSize: maxProductCards}
	if keyword != "" {
		params.Keyword = keyword
	} else {
		params.SortBy = "sales"
		params.Order = "desc"
	}
	page, err := n.Products.Search(ctx, params)
	if err != nil {
		return nil
	}
	return page.Items
}

func (n *ProductRecommendationNode) recommendationSentence(ctx context.Context, message string, products []facade.Product) string {
	if n.LLM == nil || len(products) == 0 {
		return defaultRecommendationSentence(len(products))
	}
	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Write one short recommendation sentence (at most 30 characters) introducing these product suggestions to the user."},
		{Role: "user", Content: message},
	})
	if err != nil || msg.Content == "" {
		return defaultRecommendationSentence(len(products))
	}
	return truncateSentence(msg.Content, 30)
}
