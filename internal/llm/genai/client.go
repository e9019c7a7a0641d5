// Package genai adapts google.golang.org/genai (Gemini) to the llm.Provider
// interface.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sdk "google.golang.org/genai"

	"github.com/northstar-market/concierge/internal/config"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
)

// Client implements llm.Provider against the Gemini generateContent API.
type Client struct {
	client *sdk.Client
	model  string
	tools  []llm.ToolSchema
}

// New constructs a Client from the given configuration slot.
func New(cfg config.GenAIConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := sdk.NewClient(context.Background(), &sdk.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &Client{client: client, model: model}, nil
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

// Invoke implements llm.Provider.
func (c *Client) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	ctx, span := llm.StartRequestSpan(ctx, "genai.Invoke", c.model, len(c.tools), len(msgs))
	defer span.End()
	llm.LogRedactedPrompt(ctx, msgs)
	log := observability.LoggerWithTrace(ctx)

	contents, err := toContents(msgs)
	if err != nil {
		span.RecordError(err)
		return llm.Message{}, &state.ValidationError{Msg: err.Error()}
	}
	tools, toolCfg, err := adaptTools(c.tools)
	if err != nil {
		span.RecordError(err)
		return llm.Message{}, &state.ValidationError{Msg: err.Error()}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &sdk.GenerateContentConfig{Tools: tools, ToolConfig: toolCfg})
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", c.model).Dur("duration", dur).Msg("genai_invoke_error")
		return llm.Message{}, &state.UpstreamLLMError{Op: "genai.Invoke", Err: err}
	}

	msg, err := messageFromResponse(resp)
	if err != nil {
		span.RecordError(err)
		return llm.Message{}, &state.UpstreamLLMError{Op: "genai.Invoke", Err: err}
	}
	llm.LogRedactedResponse(ctx, resp)
	return msg, nil
}

// InvokeStream implements llm.Provider.
func (c *Client) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	ctx, span := llm.StartRequestSpan(ctx, "genai.InvokeStream", c.model, len(c.tools), len(msgs))
	defer span.End()
	llm.LogRedactedPrompt(ctx, msgs)
	log := observability.LoggerWithTrace(ctx)

	contents, err := toContents(msgs)
	if err != nil {
		span.RecordError(err)
		return &state.ValidationError{Msg: err.Error()}
	}
	tools, toolCfg, err := adaptTools(c.tools)
	if err != nil {
		span.RecordError(err)
		return &state.ValidationError{Msg: err.Error()}
	}

	stream := c.client.Models.GenerateContentStream(ctx, c.model, contents, &sdk.GenerateContentConfig{Tools: tools, ToolConfig: toolCfg})
	for resp, err := range stream {
		if err != nil {
			span.RecordError(err)
			log.Error().Err(err).Str("model", c.model).Msg("genai_stream_error")
			return &state.UpstreamLLMError{Op: "genai.InvokeStream", Err: err}
		}
		msg, err := messageFromResponse(resp)
		if err != nil {
			continue // intermediate chunk with no actionable content
		}
		if msg.Content != "" {
			h.OnDelta(msg.Content)
		}
		for _, tc := range msg.ToolCalls {
			h.OnToolCall(tc)
		}
	}
	return nil
}

func toContents(msgs []llm.Message) ([]*sdk.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages required")
	}
	toolNamesByID := map[string]string{}
	var lastFuncName string
	contents := make([]*sdk.Content, 0, len(msgs))
	for _, m := range msgs {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case "", "user", "system":
			role = sdk.RoleUser
		case "assistant":
			role = sdk.RoleModel
			for _, tc := range m.ToolCalls {
				if tc.ID != "" && tc.Name != "" {
					toolNamesByID[tc.ID] = tc.Name
				}
				if strings.TrimSpace(tc.Name) != "" {
					lastFuncName = tc.Name
				}
			}
		case "tool":
			name := toolNamesByID[m.ToolID]
			if name == "" {
				name = lastFuncName
				if name == "" {
					name = "tool_response"
				}
			}
			respMap := map[string]any{}
			if trimmed := strings.TrimSpace(m.Content); trimmed != "" {
				if err := json.Unmarshal([]byte(trimmed), &respMap); err != nil {
					respMap = map[string]any{"output": m.Content}
				}
			}
			part := sdk.NewPartFromFunctionResponse(name, respMap)
			contents = append(contents, sdk.NewContentFromParts([]*sdk.Part{part}, sdk.RoleUser))
			continue
		default:
			return nil, fmt.Errorf("unsupported role for genai provider: %s", m.Role)
		}
		text := m.Content
		if role == sdk.RoleUser && strings.ToLower(strings.TrimSpace(m.Role)) == "system" {
			text = "[system] " + text
		}
		var parts []*sdk.Part
		if strings.TrimSpace(text) != "" {
			parts = append(parts, &sdk.Part{Text: text})
		}
		if role == sdk.RoleModel {
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if len(tc.Args) > 0 {
					_ = json.Unmarshal(tc.Args, &args)
				}
				parts = append(parts, sdk.NewPartFromFunctionCall(tc.Name, args))
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &sdk.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

func messageFromResponse(resp *sdk.GenerateContentResponse) (llm.Message, error) {
	if resp == nil {
		return llm.Message{}, fmt.Errorf("nil response from genai provider")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return llm.Message{}, fmt.Errorf("request blocked by genai: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return llm.Message{}, fmt.Errorf("no candidates in genai response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return llm.Message{Role: "assistant"}, nil
	}

	var sb strings.Builder
	var calls []llm.ToolCall
	callIdx := 0
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			callIdx++
			id := part.FunctionCall.ID
			if strings.TrimSpace(id) == "" {
				id = "call-" + strconv.Itoa(callIdx)
			}
			calls = append(calls, llm.ToolCall{Name: part.FunctionCall.Name, Args: args, ID: id})
		}
	}
	return llm.Message{Role: "assistant", Content: sb.String(), ToolCalls: calls}, nil
}

func adaptTools(schemas []llm.ToolSchema) ([]*sdk.Tool, *sdk.ToolConfig, error) {
	if len(schemas) == 0 {
		return nil, nil, nil
	}
	fd := make([]*sdk.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		if strings.TrimSpace(s.Name) == "" {
			return nil, nil, fmt.Errorf("genai provider: tool name required")
		}
		fd = append(fd, &sdk.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	cfg := &sdk.ToolConfig{
		FunctionCallingConfig: &sdk.FunctionCallingConfig{Mode: sdk.FunctionCallingConfigModeAuto},
	}
	return []*sdk.Tool{{FunctionDeclarations: fd}}, cfg, nil
}
