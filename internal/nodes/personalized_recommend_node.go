package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

// PersonalizedRecommendNode uses the user's inferred browse interests to
// fetch a personalized product list.
type PersonalizedRecommendNode struct {
	LLM             llm.Provider
	Browse          facade.BrowseService
	Recommendations facade.RecommendationService
}

func (n *PersonalizedRecommendNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	if n.Browse == nil || n.Recommendations == nil {
		s.Response = "暂时无法生成个性化推荐，请稍后再试。"
		return s, nil
	}

	interests, err := n.Browse.GetUserInterests(ctx, s.UserID)
	if err != nil || (len(interests.TechStack) == 0 && len(interests.Categories) == 0) {
		s.Response = "还没有足够的浏览记录来生成个性化推荐，快去看看商品吧！"
		return s, nil
	}

	products, err := n.Recommendations.GetPersonalized(ctx, s.UserID, maxProductCards, nil)
	if err != nil || len(products) == 0 {
		s.Response = "还没有足够的浏览记录来生成个性化推荐，快去看看商品吧！"
		return s, nil
	}

	s.QuickActions = buildProductCards(products, maxProductCards)
	s.RecommendedProducts = productIDs(products)
	s.Response = n.recommendationSentence(ctx, len(products))
	return s, nil
}

func (n *PersonalizedRecommendNode) recommendationSentence(ctx context.Context, count int) string {
	if n.LLM == nil {
		return defaultRecommendationSentence(count)
	}
	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Write one short, friendly sentence introducing these personalized picks. Do not mention technology stacks or browsing history."},
		{Role: "user", Content: "Introduce the recommendations."},
	})
	if err != nil || msg.Content == "" {
		return defaultRecommendationSentence(count)
	}
	return truncateSentence(msg.Content, 30)
}
