// Package summarizer compresses old conversation turns into a running
// summary so prompts stay bounded while long-range facts (order numbers,
// product names, conclusions) survive across many turns.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

// Config controls when and how aggressively the summarizer compresses.
type Config struct {
	TriggerThreshold int // summarize once history exceeds this many turns
	MaxContextTokens int // token ceiling enforced on summary+kept history
}

// Summarizer merges old turns into existing_summary via an LLM call and
// enforces a token ceiling on what remains in memory.
type Summarizer struct {
	Provider llm.Provider
	Config   Config
}

// EstimateTokens is the documented heuristic: max(1, len(text)//2).
func EstimateTokens(text string) int {
	n := len(text) / 2
	if n < 1 {
		return 1
	}
	return n
}

func estimateHistoryTokens(turns []state.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTokens(t.User) + EstimateTokens(t.Assistant)
	}
	return total
}

// ShouldSummarize reports whether history exceeds the trigger threshold.
func (s *Summarizer) ShouldSummarize(history []state.Turn) bool {
	threshold := s.Config.TriggerThreshold
	if threshold <= 0 {
		threshold = 10
	}
	return len(history) > threshold
}

// Result is the output of Summarize/FallbackTruncate.
type Result struct {
	Summary         string
	RemainingHistory []state.Turn
}

// Summarize splits history into compress = history[:-threshold] and keep =
// history[-threshold:]. If compress is empty, returns the existing summary
// and history untouched (no LLM call). Otherwise merges compress into
// existing_summary via the LLM and trims keep until the token ceiling
// holds.
func (s *Summarizer) Summarize(ctx context.Context, history []state.Turn, existingSummary string) (Result, error) {
	threshold := s.Config.TriggerThreshold
	if threshold <= 0 {
		threshold = 10
	}
	if len(history) <= threshold {
		return Result{Summary: existingSummary, RemainingHistory: history}, nil
	}

	compress := history[:len(history)-threshold]
	keep := history[len(history)-threshold:]
	if len(compress) == 0 {
		return Result{Summary: existingSummary, RemainingHistory: history}, nil
	}

	dump := dumpTurns(compress)
	msg, err := s.Provider.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Merge the following conversation excerpt with the existing summary into one updated summary under 500 words. Preserve concrete facts such as order numbers, product names, and conclusions reached."},
		{Role: "user", Content: fmt.Sprintf("Existing summary:\n%s\n\nConversation to merge:\n%s", existingSummary, dump)},
	})
	if err != nil {
		return Result{}, &state.SummarizationError{Err: err}
	}

	summary := msg.Content
	maxTokens := s.Config.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = 3000
	}
	for len(keep) > 0 && EstimateTokens(summary)+estimateHistoryTokens(keep) > maxTokens {
		keep = keep[1:]
	}
	return Result{Summary: summary, RemainingHistory: keep}, nil
}

// FallbackTruncate is invoked when Summarize fails: it drops the running
// summary and keeps only the most recent threshold turns.
func (s *Summarizer) FallbackTruncate(history []state.Turn) Result {
	threshold := s.Config.TriggerThreshold
	if threshold <= 0 {
		threshold = 10
	}
	if len(history) <= threshold {
		return Result{Summary: "", RemainingHistory: history}
	}
	return Result{Summary: "", RemainingHistory: history[len(history)-threshold:]}
}

func dumpTurns(turns []state.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString("User: ")
		sb.WriteString(t.User)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(t.Assistant)
		sb.WriteString("\n")
	}
	return sb.String()
}
