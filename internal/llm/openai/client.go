// Package openai adapts github.com/openai/openai-go/v2 to the llm.Provider
// interface, for OpenAI's hosted API and any self-hosted server that speaks
// the same chat-completions wire format.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/northstar-market/concierge/internal/config"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
)

// Client implements llm.Provider against the OpenAI chat-completions API.
type Client struct {
	sdk         sdk.Client
	model       string
	temperature float64
	maxTokens   int
	tools       []llm.ToolSchema
}

// New constructs a Client from the given configuration slot. httpClient may
// be nil, in which case an instrumented client from
// observability.NewHTTPClient is used.
func New(c config.OpenAIConfig, temperature float64, maxTokens int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey), option.WithHTTPClient(httpClient)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return &Client{
		sdk:         sdk.NewClient(opts...),
		model:       c.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *Client) clone() *Client {
	cp := *c
	return &cp
}

// BindTools implements llm.Provider.
func (c *Client) BindTools(tools []llm.ToolSchema) llm.Provider {
	cp := c.clone()
	cp.tools = tools
	return cp
}

func (c *Client) buildParams(msgs []llm.Message) sdk.ChatCompletionNewParams {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: adaptMessages(msgs),
	}
	if len(c.tools) > 0 {
		params.Tools = adaptSchemas(c.tools)
	}
	if c.temperature > 0 {
		params.Temperature = sdk.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(c.maxTokens))
	}
	return params
}

// Invoke implements llm.Provider.
func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	log := observability.LoggerWithTrace(ctx)
	params := c.buildParams(msgs)

	ctx, span := llm.StartRequestSpan(ctx, "openai.Invoke", c.model, len(c.tools), len(msgs))
	defer span.End()
	llm.LogRedactedPrompt(ctx, msgs)

	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("openai_chat_error")
		span.RecordError(err)
		return llm.Message{}, &state.UpstreamLLMError{Op: "openai.Invoke", Err: err}
	}

	out := llm.Message{Role: "assistant"}
	if len(comp.Choices) > 0 {
		msg := comp.Choices[0].Message
		out.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			if v, ok := tc.AsAny().(sdk.ChatCompletionMessageFunctionToolCall); ok {
				if strings.TrimSpace(v.Function.Arguments) == "" {
					continue
				}
				out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
					ID:   v.ID,
					Name: v.Function.Name,
					Args: json.RawMessage(v.Function.Arguments),
				})
			}
		}
	}
	llm.RecordTokenAttributes(span, int(comp.Usage.PromptTokens), int(comp.Usage.CompletionTokens), int(comp.Usage.TotalTokens))
	llm.LogRedactedResponse(ctx, comp.Choices)
	return out, nil
}

// InvokeStream implements llm.Provider.
func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	log := observability.LoggerWithTrace(ctx)
	params := c.buildParams(msgs)
	params.StreamOptions.IncludeUsage = sdk.Bool(true)

	ctx, span := llm.StartRequestSpan(ctx, "openai.InvokeStream", c.model, len(c.tools), len(msgs))
	defer span.End()
	llm.LogRedactedPrompt(ctx, msgs)

	start := time.Now()
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	toolCalls := map[int64]*llm.ToolCall{}
	flushed := false
	var promptTokens, completionTokens, totalTokens int

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			if chunk.Usage.TotalTokens > 0 {
				promptTokens = int(chunk.Usage.PromptTokens)
				completionTokens = int(chunk.Usage.CompletionTokens)
				totalTokens = int(chunk.Usage.TotalTokens)
			}
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			h.OnDelta(delta.Content)
		}
		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			if toolCalls[idx] == nil {
				toolCalls[idx] = &llm.ToolCall{ID: tc.ID}
			}
			if tc.Function.Name != "" {
				toolCalls[idx].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[idx].Args = json.RawMessage(string(toolCalls[idx].Args) + tc.Function.Arguments)
			}
		}
		if chunk.Choices[0].FinishReason != "" && !flushed {
			for _, tc := range toolCalls {
				if tc != nil && tc.Name != "" && strings.TrimSpace(string(tc.Args)) != "" {
					h.OnToolCall(*tc)
				}
			}
			flushed = true
		}
	}

	err := stream.Err()
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("openai_stream_error")
		span.RecordError(err)
		return &state.UpstreamLLMError{Op: "openai.InvokeStream", Err: err}
	}
	llm.RecordTokenAttributes(span, promptTokens, completionTokens, totalTokens)
	return nil
}
