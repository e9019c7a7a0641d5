package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

const purchaseGuidePrompt = `You are a marketplace assistant explaining the purchase process. Cover, as relevant to the question: how to buy (browse, add to cart, checkout), accepted payment methods (card, wallet, bank transfer), and the refund policy (request within 7 days of delivery, refunds processed in 3-5 business days). Answer the user's specific question using this context.`

// PurchaseGuideNode answers questions about the purchase flow, payment
// methods, and refund policy against a static context.
type PurchaseGuideNode struct {
	LLM llm.Provider
}

func (n *PurchaseGuideNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	msg, err := n.LLM.Invoke(ctx, n.messages(s))
	if err != nil {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		return s, nil
	}
	s.Response = msg.Content
	return s, nil
}

func (n *PurchaseGuideNode) ExecuteStream(ctx context.Context, s state.ConversationState, onDelta func(string)) (state.ConversationState, error) {
	var full string
	err := n.LLM.InvokeStream(ctx, n.messages(s), streamHandlerFunc{
		onDelta: func(chunk string) {
			full += chunk
			onDelta(chunk)
		},
	})
	if err != nil {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		return s, nil
	}
	s.Response = full
	return s, nil
}

func (n *PurchaseGuideNode) messages(s state.ConversationState) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: purchaseGuidePrompt},
		{Role: "user", Content: s.UserMessage},
	}
}

// streamHandlerFunc adapts plain closures to llm.StreamHandler.
type streamHandlerFunc struct {
	onDelta    func(string)
	onToolCall func(llm.ToolCall)
}

func (h streamHandlerFunc) OnDelta(content string) {
	if h.onDelta != nil {
		h.onDelta(content)
	}
}

func (h streamHandlerFunc) OnToolCall(tc llm.ToolCall) {
	if h.onToolCall != nil {
		h.onToolCall(tc)
	}
}
