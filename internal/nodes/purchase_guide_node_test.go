package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

func TestPurchaseGuideNode_AnswersAgainstStaticContext(t *testing.T) {
	n := &PurchaseGuideNode{LLM: &staticProvider{resp: llm.Message{Content: "You can pay by card or wallet."}}}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "how do I pay?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" {
		t.Fatal("expected non-empty response")
	}
}

func TestPurchaseGuideNode_ExecuteStreamForwardsDeltas(t *testing.T) {
	n := &PurchaseGuideNode{LLM: &staticProvider{resp: llm.Message{Content: "refunds within 7 days"}}}
	var got strings.Builder
	out, err := n.ExecuteStream(context.Background(), state.ConversationState{UserMessage: "refund policy?"}, func(chunk string) {
		got.WriteString(chunk)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "refunds within 7 days" {
		t.Fatalf("unexpected streamed content %q", got.String())
	}
	if out.Response != "refunds within 7 days" {
		t.Fatalf("unexpected final response %q", out.Response)
	}
}

func TestPurchaseGuideNode_StreamFailureUsesApology(t *testing.T) {
	n := &PurchaseGuideNode{LLM: &staticProvider{err: errors.New("boom")}}
	out, err := n.ExecuteStream(context.Background(), state.ConversationState{}, func(string) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "处理您的请求时出现了问题，请稍后再试" {
		t.Fatalf("unexpected response %q", out.Response)
	}
}
