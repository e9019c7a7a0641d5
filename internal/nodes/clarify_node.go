package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

// ClarifyNode re-prompts the user when intent confidence is too low to
// route confidently. It never feeds into the save node.
type ClarifyNode struct {
	LLM llm.Provider
}

func (n *ClarifyNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "The user's intent was unclear. Write a brief, friendly message asking them to clarify what they need, and mention the available services: order lookup, product search, recommendations, purchase guidance, and support tickets."},
		{Role: "user", Content: s.UserMessage},
	})
	if err != nil {
		s.Response = "抱歉，我不太理解您的需求，您可以告诉我是想查询订单、搜索商品，还是需要其他帮助吗？"
		return s, nil
	}
	s.Response = msg.Content
	return s, nil
}
