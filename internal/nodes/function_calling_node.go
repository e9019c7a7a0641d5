package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
	"github.com/northstar-market/concierge/internal/tools"
)

// skipIntents never reach the tool-bound LLM call; they return with
// tool_used/tool_result both unset.
var skipIntents = map[state.Intent]bool{
	state.IntentQA:                    true,
	state.IntentDocumentAnalysis:      true,
	state.IntentTicket:                true,
	state.IntentPurchaseGuide:         true,
	state.IntentPersonalizedRecommend: true,
}

// intentToolHints names the tool a given intent is most likely to need, so
// the system message can steer the model.
var intentToolHints = map[state.Intent]string{
	state.IntentOrderQuery:       "query_order or get_logistics",
	state.IntentProductInquiry:   "search_products",
	state.IntentProductRecommend: "search_products",
}

// FunctionCallingNode binds the tool registry to the LLM and lets the
// model decide which, if any, canonical tools to invoke for this turn.
type FunctionCallingNode struct {
	LLM      llm.Provider
	Registry tools.Registry
}

func (n *FunctionCallingNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	if skipIntents[s.Intent] || s.Confidence < 0.6 {
		s.ToolUsed = ""
		s.ToolResult = nil
		return s, nil
	}

	msgs := n.buildMessages(s)
	bound := n.LLM.BindTools(n.Registry.Schemas())
	resp, err := bound.Invoke(ctx, msgs)
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("function_calling_llm_failed")
		s.ToolUsed = ""
		s.ToolResult = nil
		return s, nil
	}

	if len(resp.ToolCalls) == 0 {
		s.ToolUsed = ""
		s.ToolResult = nil
		return s, nil
	}

	names := make([]string, 0, len(resp.ToolCalls))
	results := make([]state.ToolResult, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		raw := n.Registry.Dispatch(ctx, call.Name, call.Args)
		var payload struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
			Error   string          `json:"error"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			results = append(results, state.ToolResult{Tool: call.Name, Error: "failed to decode tool response"})
			names = append(names, call.Name)
			continue
		}
		if payload.Success {
			var data any
			_ = json.Unmarshal(payload.Data, &data)
			results = append(results, state.ToolResult{Tool: call.Name, Result: data})
		} else {
			results = append(results, state.ToolResult{Tool: call.Name, Error: payload.Error})
		}
		names = append(names, call.Name)
		observability.LoggerWithTrace(ctx).Info().Str("tool", call.Name).Msg("tool_invoked")
	}

	s.ToolUsed = strings.Join(names, ",")
	s.ToolResult = results
	return s, nil
}

func (n *FunctionCallingNode) buildMessages(s state.ConversationState) []llm.Message {
	hint, ok := intentToolHints[s.Intent]
	systemMsg := fmt.Sprintf("You are assisting user %s. For intent %s, prefer calling %s if relevant.", s.UserID, s.Intent, hint)
	if !ok {
		systemMsg = fmt.Sprintf("You are assisting user %s handling intent %s.", s.UserID, s.Intent)
	}

	msgs := []llm.Message{{Role: "system", Content: systemMsg}}

	history := s.ConversationHistory
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	for _, turn := range history {
		msgs = append(msgs, llm.Message{Role: "user", Content: turn.User})
		msgs = append(msgs, llm.Message{Role: "assistant", Content: turn.Assistant})
	}

	msgs = append(msgs, llm.Message{Role: "user", Content: fmt.Sprintf("[intent:%s] %s", s.Intent, s.UserMessage)})
	return msgs
}
