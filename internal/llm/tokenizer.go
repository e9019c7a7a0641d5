package llm

import "context"

// Tokenizer provides accurate token counting for a specific provider.
type Tokenizer interface {
	CountTokens(ctx context.Context, text string) (int, error)
	CountMessagesTokens(ctx context.Context, msgs []Message) (int, error)
}

// TokenizableProvider is an optional interface a Provider can implement to
// offer accurate token counting instead of the heuristic fallback.
type TokenizableProvider interface {
	Provider
	Tokenizer() Tokenizer
}

// EstimateTokens is a generic heuristic fallback (~4 chars/token) used for
// context-window budgeting across providers when no accurate Tokenizer is
// attached. The conversation summarizer uses its own, coarser heuristic
// (see internal/summarizer) because its token ceiling invariant is pinned
// to that specific formula.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len([]rune(s))/4 + 1
}

// EstimateTokensForMessages sums EstimateTokens over message content.
func EstimateTokensForMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}
