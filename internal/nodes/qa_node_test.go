package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

type staticProvider struct {
	resp llm.Message
	err  error
}

func (p *staticProvider) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	return p.resp, p.err
}
func (p *staticProvider) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	if p.err != nil {
		return p.err
	}
	h.OnDelta(p.resp.Content)
	return nil
}
func (p *staticProvider) BindTools(schemas []llm.ToolSchema) llm.Provider { return p }

func TestQANode_GreetingSkipsRetrieval(t *testing.T) {
	n := &QANode{LLM: &staticProvider{resp: llm.Message{Content: "你好！"}}}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "你好！" {
		t.Fatalf("unexpected response %q", out.Response)
	}
	if out.RetrievedDocs != nil {
		t.Fatalf("expected no retrieval for greeting")
	}
}

func TestQANode_LLMFailureUsesFixedApology(t *testing.T) {
	n := &QANode{LLM: &staticProvider{err: errors.New("boom")}}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "tell me about refunds in great detail please"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "处理您的请求时出现了问题，请稍后再试" {
		t.Fatalf("unexpected response %q", out.Response)
	}
}

func TestIsGreeting_ShortMessageIsGreeting(t *testing.T) {
	if !isGreeting("ok", "") {
		t.Fatal("expected short message to be treated as greeting")
	}
	if !isGreeting("hello there", "") {
		t.Fatal("expected hello to match greeting pattern")
	}
	if isGreeting("I would like to check my order status please", "") {
		t.Fatal("expected long non-greeting message to not match")
	}
}

func TestIsGreeting_ZHLocaleUsesChinesePattern(t *testing.T) {
	if !isGreeting("你好，在吗", "zh-CN") {
		t.Fatal("expected zh locale to match Chinese greeting pattern")
	}
	if isGreeting("hello there, how are you today", "zh-CN") {
		t.Fatal("expected zh locale to not match English-only greeting text")
	}
}
