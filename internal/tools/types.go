// Package tools implements the registry of callable capabilities the
// function-calling node can bind to an llm.Provider, plus the seven
// canonical tools backed by the external-data facade.
package tools

import (
	"context"
	"encoding/json"

	"github.com/northstar-market/concierge/internal/llm"
)

// Tool is an executable capability the workflow can call. Call never
// returns an error into the registry's caller: Dispatch converts any
// failure into a structured {"success":false,"error":...} payload so a
// misbehaving tool cannot abort the conversation turn.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (any, error)
}

// Registry keeps track of tools and dispatches calls by name.
type Registry interface {
	Schemas() []llm.ToolSchema
	Dispatch(ctx context.Context, name string, raw json.RawMessage) json.RawMessage
	Register(t Tool)
}

type defaultRegistry struct {
	byName map[string]Tool
}

// NewRegistry returns a basic in-memory registry.
func NewRegistry() Registry {
	return &defaultRegistry{byName: make(map[string]Tool)}
}

func (r *defaultRegistry) Register(t Tool) { r.byName[t.Name()] = t }

func (r *defaultRegistry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.byName))
	for name, t := range r.byName {
		out = append(out, llm.ToolSchema{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// Dispatch never returns an error: a missing tool or a failing Call both
// become a structured failure payload the caller records as a ToolResult.
func (r *defaultRegistry) Dispatch(ctx context.Context, name string, raw json.RawMessage) json.RawMessage {
	t, ok := r.byName[name]
	if !ok {
		b, _ := json.Marshal(map[string]any{"success": false, "error": "tool not found: " + name})
		return b
	}
	val, err := t.Call(ctx, raw)
	if err != nil {
		b, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
		return b
	}
	b, err := json.Marshal(map[string]any{"success": true, "data": val})
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{"success": false, "error": "failed to encode tool result"})
		return fallback
	}
	return b
}
