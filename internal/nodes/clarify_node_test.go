package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

func TestClarifyNode_ReturnsLLMPrompt(t *testing.T) {
	n := &ClarifyNode{LLM: &staticProvider{resp: llm.Message{Content: "您是想查询订单还是搜索商品呢？"}}}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "嗯"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" {
		t.Fatal("expected non-empty clarification prompt")
	}
}

func TestClarifyNode_LLMFailureUsesStaticFallback(t *testing.T) {
	n := &ClarifyNode{LLM: &staticProvider{err: errors.New("boom")}}
	out, err := n.Execute(context.Background(), state.ConversationState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" {
		t.Fatal("expected static fallback message")
	}
}
