package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

func TestTicketNode_ParsesStructuredExtraction(t *testing.T) {
	n := &TicketNode{LLM: &staticProvider{resp: llm.Message{Content: `{"title":"物流延迟","description":"包裹超时未送达","priority":"high","category":"logistics"}`}}}
	out, err := n.Execute(context.Background(), state.ConversationState{Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TicketID == "" {
		t.Fatal("expected ticket id to be set")
	}
	if !strings.Contains(out.Response, "物流延迟") {
		t.Fatalf("expected response to mention ticket title, got %q", out.Response)
	}
}

func TestTicketNode_UnparsableExtractionFallsBackGracefully(t *testing.T) {
	n := &TicketNode{LLM: &staticProvider{resp: llm.Message{Content: "not json at all"}}}
	out, err := n.Execute(context.Background(), state.ConversationState{UserMessage: "it's broken"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TicketID == "" {
		t.Fatal("expected ticket id even on fallback")
	}
}

func TestTicketNode_LLMFailureReturnsApology(t *testing.T) {
	n := &TicketNode{LLM: &staticProvider{err: errors.New("boom")}}
	out, err := n.Execute(context.Background(), state.ConversationState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "处理您的请求时出现了问题，请稍后再试" {
		t.Fatalf("unexpected response %q", out.Response)
	}
	if out.TicketID != "" {
		t.Fatal("expected no ticket id on LLM failure")
	}
}

func TestParseTicket_InvalidPriorityDefaultsToMedium(t *testing.T) {
	ticket, err := parseTicket(`{"title":"x","description":"y","priority":"critical","category":"z"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Priority != "medium" {
		t.Fatalf("expected medium, got %q", ticket.Priority)
	}
}
