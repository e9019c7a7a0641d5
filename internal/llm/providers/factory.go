// Package providers builds a concrete llm.Provider from a configuration
// slot, so callers never import a backend package directly.
package providers

import (
	"fmt"
	"net/http"

	"github.com/northstar-market/concierge/internal/config"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/llm/anthropic"
	"github.com/northstar-market/concierge/internal/llm/genai"
	openaillm "github.com/northstar-market/concierge/internal/llm/openai"
)

// Build constructs an llm.Provider for the given slot's configured backend.
func Build(slot config.LLMSlot, httpClient *http.Client) (llm.Provider, error) {
	switch slot.Provider {
	case "", "openai":
		return openaillm.New(slot.OpenAI, slot.Temperature, slot.MaxTokens, httpClient), nil
	case "anthropic":
		return anthropic.New(slot.Anthropic, httpClient), nil
	case "genai", "google", "gemini":
		return genai.New(slot.GenAI, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", slot.Provider)
	}
}
