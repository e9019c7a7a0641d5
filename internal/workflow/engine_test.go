package workflow

import (
	"context"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/nodes"
	"github.com/northstar-market/concierge/internal/router"
	"github.com/northstar-market/concierge/internal/state"
)

type fakeQAProvider struct{}

func (fakeQAProvider) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	return llm.Message{Content: "QA"}, nil
}
func (fakeQAProvider) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	return nil
}
func (fakeQAProvider) BindTools(schemas []llm.ToolSchema) llm.Provider { return fakeQAProvider{} }

type fakeNode struct {
	fn func(ctx context.Context, s state.ConversationState) (state.ConversationState, error)
}

func (f *fakeNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	return f.fn(ctx, s)
}

type fakeStreamingNode struct {
	chunks []string
}

func (f *fakeStreamingNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	return s, nil
}

func (f *fakeStreamingNode) ExecuteStream(ctx context.Context, s state.ConversationState, onDelta func(string)) (state.ConversationState, error) {
	var full string
	for _, c := range f.chunks {
		onDelta(c)
		full += c
	}
	s.Response = full
	return s, nil
}

func TestEngine_ProcessMessage_RunsQAPath(t *testing.T) {
	intentNode := &nodes.IntentRecognitionNode{LLM: fakeQAProvider{}}
	e := NewEngine(nil, intentNode, nil, nil, map[string]nodes.Node{
		router.NodeQA: &fakeNode{fn: func(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
			s.Response = "answered"
			return s, nil
		}},
	})

	out, err := e.ProcessMessage(context.Background(), "u1", "s1", "hello there friend", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "answered" {
		t.Fatalf("unexpected response %q", out.Response)
	}
	if out.MessageID == "" {
		t.Fatal("expected a generated message_id")
	}
}

func TestEngine_ProcessMessageStream_EmitsStartIntentContentEnd(t *testing.T) {
	intentNode := &nodes.IntentRecognitionNode{LLM: fakeQAProvider{}}
	e := NewEngine(nil, intentNode, nil, nil, map[string]nodes.Node{
		router.NodeQA: &fakeStreamingNode{chunks: []string{"a", "b", "c"}},
	})

	var events []Event
	e.ProcessMessageStream(context.Background(), "u1", "s1", "hello there friend", "", nil, func(ev Event) {
		events = append(events, ev)
	})

	if len(events) < 4 {
		t.Fatalf("expected at least start/intent/content.../end, got %d events", len(events))
	}
	if events[0].Type != EventStart {
		t.Fatalf("expected first event start, got %q", events[0].Type)
	}
	if events[1].Type != EventIntent {
		t.Fatalf("expected second event intent, got %q", events[1].Type)
	}
	if events[len(events)-1].Type != EventEnd {
		t.Fatalf("expected last event end, got %q", events[len(events)-1].Type)
	}

	var content string
	for _, ev := range events {
		if ev.Type == EventContent {
			content += ev.Delta
		}
	}
	if content != "abc" {
		t.Fatalf("expected streamed content abc, got %q", content)
	}
}

func TestEngine_ProcessMessage_UnknownNodeKeyDegradesGracefully(t *testing.T) {
	intentNode := &nodes.IntentRecognitionNode{LLM: fakeQAProvider{}}
	e := NewEngine(nil, intentNode, nil, nil, map[string]nodes.Node{})

	out, err := e.ProcessMessage(context.Background(), "u1", "s1", "hello there friend", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" {
		t.Fatal("expected apology response for missing responder")
	}
}
