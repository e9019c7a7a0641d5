package llm

import (
	"context"
	"encoding/json"
)

// ToolCall is a single function invocation the model asked for.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Message is one turn in a chat-completion conversation.
type Message struct {
	Role      string // "system" | "user" | "assistant" | "tool"
	Content   string
	ToolID    string     // set on role=="tool" messages, echoes the ToolCall.ID
	ToolCalls []ToolCall // set on assistant messages that invoke tools
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StreamHandler receives incremental output from a streaming chat call.
type StreamHandler interface {
	OnDelta(content string)
	OnToolCall(tc ToolCall)
}

// Provider is the unified chat-completion + tool-binding + streaming
// interface every backend (OpenAI-compatible, Anthropic, Gemini) satisfies.
// A Provider is constructed with a fixed model/base-url/api-key, so the
// main and intent variants spec.md §4.H calls for are simply two Provider
// instances.
type Provider interface {
	// Invoke performs a blocking chat completion.
	Invoke(ctx context.Context, msgs []Message) (Message, error)
	// InvokeStream performs an incremental chat completion, delivering
	// deltas and tool calls to h as they arrive.
	InvokeStream(ctx context.Context, msgs []Message, h StreamHandler) error
	// BindTools returns a derived Provider whose Invoke/InvokeStream calls
	// offer the given tool catalogue to the model. The receiver is left
	// unmodified, so the unbound Provider remains safe to keep around.
	BindTools(tools []ToolSchema) Provider
}
