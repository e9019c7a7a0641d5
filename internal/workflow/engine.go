// Package workflow wires the context, intent, function-calling, router,
// responder, and save nodes into the directed graph that answers one
// conversation turn: entry → Context → Intent → FunctionCalling → Router →
// responder → Save → end (Clarify skips Save).
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/northstar-market/concierge/internal/nodes"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/router"
	"github.com/northstar-market/concierge/internal/state"
)

const tracerName = "concierge/workflow"

// Engine owns one instance of every node in the graph and threads
// ConversationState through them in order.
type Engine struct {
	Context         *nodes.ContextNode
	Intent          *nodes.IntentRecognitionNode
	FunctionCalling *nodes.FunctionCallingNode
	Save            *nodes.SaveContextNode

	Responders map[string]nodes.Node
}

// NewEngine assembles an Engine from the responder table the caller has
// already constructed node-by-node.
func NewEngine(ctxNode *nodes.ContextNode, intentNode *nodes.IntentRecognitionNode, fcNode *nodes.FunctionCallingNode, save *nodes.SaveContextNode, responders map[string]nodes.Node) *Engine {
	return &Engine{Context: ctxNode, Intent: intentNode, FunctionCalling: fcNode, Save: save, Responders: responders}
}

// ProcessMessage runs the full graph to completion and returns the final
// state.
func (e *Engine) ProcessMessage(ctx context.Context, userID, sessionID, text, locale string, attachments []state.Attachment) (state.ConversationState, error) {
	start := time.Now()
	s := state.ConversationState{
		UserID: userID, SessionID: sessionID, MessageID: uuid.NewString(),
		Locale: locale, UserMessage: text, Attachments: attachments,
	}

	s, nodeKey, err := e.runUpToRouting(ctx, s)
	if err != nil {
		return s, err
	}

	responder, ok := e.Responders[nodeKey]
	if !ok {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		s.ProcessingTime = time.Since(start)
		return s, nil
	}

	s, err = e.runNode(ctx, "responder."+nodeKey, responder, s)
	if err != nil {
		s.ProcessingTime = time.Since(start)
		return s, nil
	}

	if nodeKey != router.NodeClarify && e.Save != nil {
		if saved, saveErr := e.runNode(ctx, "save_context", e.Save, s); saveErr == nil {
			s = saved
		}
	}

	s.ProcessingTime = time.Since(start)
	return s, nil
}

// runUpToRouting executes Context → Intent → FunctionCalling → Router and
// returns the state plus the chosen responder key. Shared by the
// synchronous and streaming entry points so intent/tool-call behavior
// never diverges between the two.
func (e *Engine) runUpToRouting(ctx context.Context, s state.ConversationState) (state.ConversationState, string, error) {
	var err error
	if e.Context != nil {
		s, err = e.runNode(ctx, "context", e.Context, s)
		if err != nil {
			return s, "", err
		}
	}

	s, err = e.runNode(ctx, "intent", e.Intent, s)
	if err != nil {
		s.Intent = state.IntentQA
		s.Confidence = 0.5
	}

	if e.FunctionCalling != nil {
		if fcState, fcErr := e.runNode(ctx, "function_calling", e.FunctionCalling, s); fcErr == nil {
			s = fcState
		} else {
			s.ToolUsed = ""
			s.ToolResult = nil
		}
	}

	nodeKey := router.Route(s.Intent, s.Confidence, s.ToolUsed)
	return s, nodeKey, nil
}

func (e *Engine) runNode(ctx context.Context, name string, n nodes.Node, s state.ConversationState) (state.ConversationState, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, name, nil)
	defer span.End()
	out, err := n.Execute(ctx, s)
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("node", name).Msg("node_execution_failed")
	}
	return out, err
}
