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

// EventType enumerates the event kinds ProcessMessageStream emits.
type EventType string

const (
	EventStart   EventType = "start"
	EventIntent  EventType = "intent"
	EventThink   EventType = "thinking"
	EventContent EventType = "content"
	EventEnd     EventType = "end"
)

// Event is one item in the streamed response sequence.
type Event struct {
	Type                EventType           `json:"type"`
	Intent              state.Intent        `json:"intent,omitempty"`
	Content             string              `json:"content,omitempty"`
	Delta               string              `json:"delta,omitempty"`
	Sources             []any               `json:"sources,omitempty"`
	QuickActions        []state.QuickAction `json:"quick_actions,omitempty"`
	RecommendedProducts []string            `json:"recommended_products,omitempty"`
	ProcessingTime      time.Duration       `json:"processing_time,omitempty"`
}

// ProcessMessageStream runs intent and tool-call resolution synchronously,
// then invokes the selected responder's streaming variant (if it has one)
// and forwards its token deltas as content events. Non-streaming responders
// produce their full response first and emit it as a single content event.
func (e *Engine) ProcessMessageStream(ctx context.Context, userID, sessionID, text, locale string, attachments []state.Attachment, emit func(Event)) {
	start := time.Now()
	emit(Event{Type: EventStart})

	s := state.ConversationState{
		UserID: userID, SessionID: sessionID, MessageID: uuid.NewString(),
		Locale: locale, UserMessage: text, Attachments: attachments,
	}

	s, nodeKey, err := e.runUpToRouting(ctx, s)
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("stream_routing_failed")
	}
	emit(Event{Type: EventIntent, Intent: s.Intent})

	responder, ok := e.Responders[nodeKey]
	if !ok {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		emit(Event{Type: EventContent, Delta: s.Response})
		emit(Event{Type: EventEnd, ProcessingTime: time.Since(start)})
		return
	}

	if streaming, ok := responder.(nodes.StreamingNode); ok {
		out, streamErr := e.runStreamingNode(ctx, "responder."+nodeKey, streaming, s, func(delta string) {
			emit(Event{Type: EventContent, Delta: delta})
		})
		if streamErr == nil {
			s = out
		}
	} else {
		out, runErr := e.runNode(ctx, "responder."+nodeKey, responder, s)
		if runErr == nil {
			s = out
		}
		emit(Event{Type: EventContent, Delta: s.Response})
	}

	if nodeKey != router.NodeClarify && e.Save != nil {
		if saved, saveErr := e.runNode(ctx, "save_context", e.Save, s); saveErr == nil {
			s = saved
		}
	}

	emit(Event{
		Type:                EventEnd,
		Sources:             s.Sources,
		QuickActions:        s.QuickActions,
		RecommendedProducts: s.RecommendedProducts,
		ProcessingTime:      time.Since(start),
	})
}

func (e *Engine) runStreamingNode(ctx context.Context, name string, n nodes.StreamingNode, s state.ConversationState, onDelta func(string)) (state.ConversationState, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, name, nil)
	defer span.End()
	out, err := n.ExecuteStream(ctx, s, onDelta)
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("node", name).Msg("streaming_node_execution_failed")
	}
	return out, err
}
