// Package nodes implements the workflow graph's individual steps: context
// loading, intent recognition, function calling, the nine responders, and
// context persistence. Each node is a pure function over
// state.ConversationState; streaming-capable nodes additionally expose
// ExecuteStream.
package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/state"
)

// Node is the capability every workflow step implements.
type Node interface {
	Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error)
}

// StreamingNode is additionally implemented by responders that can yield
// partial content as it is generated. The workflow engine probes for this
// capability; absent, it falls back to materializing the full response as
// a single content delta.
type StreamingNode interface {
	Node
	ExecuteStream(ctx context.Context, s state.ConversationState, onDelta func(string)) (state.ConversationState, error)
}
