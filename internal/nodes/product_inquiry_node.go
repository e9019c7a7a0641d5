package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

// ProductInquiryNode compares and recommends several products in detail.
type ProductInquiryNode struct {
	LLM      llm.Provider
	Products facade.ProductService
}

func (n *ProductInquiryNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	products := productsFromToolResult(s.ToolResult)
	if len(products) == 0 && n.Products != nil {
		keyword := extractKeyword(s.UserMessage)
		page, err := n.Products.Search(ctx, facade.ProductSearchParams{Keyword: keyword, Status: "published", Page: 1, PageSize: maxProductCards})
		if err == nil {
			products = page.Items
		}
	}

	if len(products) == 0 {
		s.Response = "抱歉，没有找到符合条件的商品，您可以换个关键词试试。"
		return s, nil
	}

	s.QuickActions = buildProductCards(products, maxProductCards)

	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Compare these products in detail and recommend 3 to 5 of them, mentioning each by title."},
		{Role: "user", Content: s.UserMessage},
	})
	if err != nil {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		return s, nil
	}

	s.Response = msg.Content
	s.RecommendedProducts = matchProductIDs(msg.Content, products)
	return s, nil
}
