package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
)

var validPriorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}

// TicketNode extracts a structured support ticket from the user's message
// and assigns it an id.
type TicketNode struct {
	LLM llm.Provider
}

type extractedTicket struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

func (n *TicketNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: `Extract a support ticket from the user's message as JSON with fields title, description, priority (one of low/medium/high/urgent), category. Respond with only the JSON object.`},
		{Role: "user", Content: s.UserMessage},
	})
	if err != nil {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		return s, nil
	}

	ticket, perr := parseTicket(msg.Content)
	if perr != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(perr).Msg("ticket_extraction_failed")
		ticket = extractedTicket{Title: "用户反馈", Description: s.UserMessage, Priority: "medium", Category: "general"}
	}

	s.TicketID = generateTicketID(s.Timestamp)
	s.Response = fmt.Sprintf("已为您创建工单 %s：%s。我们会尽快处理。", s.TicketID, ticket.Title)
	return s, nil
}

func parseTicket(content string) (extractedTicket, error) {
	raw := extractJSONObject(content)
	var t extractedTicket
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return extractedTicket{}, err
	}
	if !validPriorities[t.Priority] {
		t.Priority = "medium"
	}
	if strings.TrimSpace(t.Title) == "" {
		return extractedTicket{}, fmt.Errorf("empty title")
	}
	return t, nil
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func generateTicketID(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return "TKT" + ts.Format("20060102150405")
}
