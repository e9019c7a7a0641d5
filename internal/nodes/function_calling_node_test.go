package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
	"github.com/northstar-market/concierge/internal/tools"
)

type fakeBoundProvider struct {
	resp llm.Message
	err  error
}

func (f *fakeBoundProvider) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	return f.resp, f.err
}
func (f *fakeBoundProvider) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	return f.err
}
func (f *fakeBoundProvider) BindTools(schemas []llm.ToolSchema) llm.Provider { return f }

type fakeTool struct {
	name string
	val  any
	err  error
}

func (t *fakeTool) Name() string                   { return t.name }
func (t *fakeTool) Description() string            { return "fake" }
func (t *fakeTool) Parameters() map[string]any     { return map[string]any{} }
func (t *fakeTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	return t.val, t.err
}

func TestFunctionCallingNode_SkipsListedIntents(t *testing.T) {
	n := &FunctionCallingNode{}
	s := state.ConversationState{Intent: state.IntentQA, Confidence: 0.99}
	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ToolUsed != "" || out.ToolResult != nil {
		t.Fatalf("expected no tool invocation, got %+v", out)
	}
}

func TestFunctionCallingNode_SkipsLowConfidence(t *testing.T) {
	n := &FunctionCallingNode{}
	s := state.ConversationState{Intent: state.IntentOrderQuery, Confidence: 0.4}
	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ToolUsed != "" {
		t.Fatalf("expected empty ToolUsed, got %q", out.ToolUsed)
	}
}

func TestFunctionCallingNode_InvokesToolAndRecordsResult(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&fakeTool{name: "query_order", val: map[string]any{"status": "shipped"}})

	provider := &fakeBoundProvider{resp: llm.Message{
		ToolCalls: []llm.ToolCall{{ID: "1", Name: "query_order", Args: json.RawMessage(`{"order_no":"ORD1"}`)}},
	}}
	n := &FunctionCallingNode{LLM: provider, Registry: registry}
	s := state.ConversationState{Intent: state.IntentOrderQuery, Confidence: 0.9, UserMessage: "where is my order"}

	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ToolUsed != "query_order" {
		t.Fatalf("expected ToolUsed=query_order, got %q", out.ToolUsed)
	}
	if len(out.ToolResult) != 1 || out.ToolResult[0].Error != "" {
		t.Fatalf("expected one successful result, got %+v", out.ToolResult)
	}
}

func TestFunctionCallingNode_ToolFailureRecordedNotFatal(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&fakeTool{name: "query_order", err: errors.New("boom")})

	provider := &fakeBoundProvider{resp: llm.Message{
		ToolCalls: []llm.ToolCall{{ID: "1", Name: "query_order", Args: json.RawMessage(`{}`)}},
	}}
	n := &FunctionCallingNode{LLM: provider, Registry: registry}
	s := state.ConversationState{Intent: state.IntentOrderQuery, Confidence: 0.9}

	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ToolResult) != 1 || out.ToolResult[0].Error == "" {
		t.Fatalf("expected recorded error, got %+v", out.ToolResult)
	}
}

func TestFunctionCallingNode_NoToolCallsLeavesToolUsedEmpty(t *testing.T) {
	provider := &fakeBoundProvider{resp: llm.Message{Content: "no tools needed"}}
	n := &FunctionCallingNode{LLM: provider, Registry: tools.NewRegistry()}
	s := state.ConversationState{Intent: state.IntentOrderQuery, Confidence: 0.9}

	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ToolUsed != "" || out.ToolResult != nil {
		t.Fatalf("expected no tool usage, got %+v", out)
	}
}

func TestFunctionCallingNode_LLMFailureDegradesGracefully(t *testing.T) {
	provider := &fakeBoundProvider{err: errors.New("upstream down")}
	n := &FunctionCallingNode{LLM: provider, Registry: tools.NewRegistry()}
	s := state.ConversationState{Intent: state.IntentOrderQuery, Confidence: 0.9}

	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("expected no error bubbled up, got %v", err)
	}
	if out.ToolUsed != "" || out.ToolResult != nil {
		t.Fatalf("expected degraded state, got %+v", out)
	}
}
