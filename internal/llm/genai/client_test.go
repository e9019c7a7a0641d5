package genai

import (
	"encoding/json"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
)

func TestToContents_ToolResponseResolvesFunctionNameByToolID(t *testing.T) {
	msgs := []llm.Message{
		{Role: "assistant", Content: "", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_products"}}},
		{Role: "tool", ToolID: "c1", Content: `{"ok":true}`},
	}
	contents, err := toContents(msgs)
	if err != nil {
		t.Fatalf("toContents() error = %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	fr := contents[1].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "search_products" {
		t.Fatalf("expected function response name search_products, got %+v", fr)
	}
}

func TestMessageFromResponse_NilResponseIsError(t *testing.T) {
	_, err := messageFromResponse(nil)
	if err == nil {
		t.Fatal("expected error for nil response")
	}
}

func TestAdaptTools_EmptyNameRejected(t *testing.T) {
	_, _, err := adaptTools([]llm.ToolSchema{{Name: "", Parameters: map[string]any{}}})
	if err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestAdaptTools_RoundTripsParameters(t *testing.T) {
	tools, cfg, err := adaptTools([]llm.ToolSchema{{Name: "query_order", Parameters: map[string]any{"type": "object"}}})
	if err != nil {
		t.Fatalf("adaptTools() error = %v", err)
	}
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected one function declaration, got %+v", tools)
	}
	if cfg == nil {
		t.Fatal("expected non-nil tool config")
	}
	b, _ := json.Marshal(tools[0].FunctionDeclarations[0].ParametersJsonSchema)
	if string(b) != `{"type":"object"}` {
		t.Fatalf("unexpected parameters json: %s", b)
	}
}
