package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/retrieval"
	"github.com/northstar-market/concierge/internal/state"
)

// greetingPatternZH/EN are picked by ConversationState.Locale: a "zh"
// locale prefix matches on Chinese greeting words only, any other non-empty
// locale uses the English pattern, and an empty locale matches either.
// Keeps "hi"/"ok" from false-matching unrelated Chinese short replies and
// vice versa.
var (
	greetingPatternZH = regexp.MustCompile(`你好|谢谢|嗨|哈喽`)
	greetingPatternEN = regexp.MustCompile(`(?i)hello|hi|hey|thanks|thank you|ok`)
)

const attachmentCharCapQA = 5000

// QANode answers general questions, either directly for short greetings or
// via retrieval-augmented generation over the knowledge_base collection.
type QANode struct {
	LLM        llm.Provider
	Retriever  *retrieval.Retriever
	Attachments facade.AttachmentService
	TopK       int
}

func (n *QANode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	if isGreeting(s.UserMessage, s.Locale) {
		msg, err := n.LLM.Invoke(ctx, []llm.Message{
			{Role: "system", Content: "You are a friendly marketplace assistant. Reply briefly and warmly."},
			{Role: "user", Content: s.UserMessage},
		})
		if err != nil {
			s.Response = "处理您的请求时出现了问题，请稍后再试"
			return s, nil
		}
		s.Response = msg.Content
		return s, nil
	}

	attachmentBlock := n.extractAttachments(ctx, s.Attachments)

	docs := n.retrieve(ctx, s.UserMessage)
	s.RetrievedDocs = toStateDocuments(docs)
	s.Sources = sourcesFromDocuments(docs)

	prompt := n.buildPrompt(s, docs, attachmentBlock)
	msg, err := n.LLM.Invoke(ctx, prompt)
	if err != nil {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		return s, nil
	}
	s.Response = msg.Content
	return s, nil
}

func isGreeting(message, locale string) bool {
	if utf8.RuneCountInString(message) <= 4 {
		return true
	}
	switch {
	case locale == "":
		// No locale hint: accept either pattern rather than guess wrong.
		return greetingPatternZH.MatchString(message) || greetingPatternEN.MatchString(message)
	case strings.HasPrefix(strings.ToLower(locale), "zh"):
		return greetingPatternZH.MatchString(message)
	default:
		return greetingPatternEN.MatchString(message)
	}
}

func (n *QANode) extractAttachments(ctx context.Context, attachments []state.Attachment) string {
	if n.Attachments == nil || len(attachments) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, a := range attachments {
		text, err := n.Attachments.ExtractText(ctx, a.FilePath)
		if err != nil {
			continue
		}
		if len(text) > attachmentCharCapQA {
			text = text[:attachmentCharCapQA]
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func (n *QANode) retrieve(ctx context.Context, query string) []retrieval.Document {
	if n.Retriever == nil {
		return nil
	}
	topK := n.TopK
	if topK <= 0 {
		topK = 5
	}
	return n.Retriever.Retrieve(ctx, retrieval.Params{
		Query:           query,
		Collection:      "knowledge_base",
		TopK:            topK,
		UseHybridSearch: true,
		UseRerank:       true,
		UseQueryRewrite: true,
	})
}

func (n *QANode) buildPrompt(s state.ConversationState, docs []retrieval.Document, attachmentBlock string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("You are a marketplace customer-service assistant. Answer using the provided context when relevant.\n")

	if s.ConversationSummary != "" {
		sb.WriteString("对话历史摘要: ")
		sb.WriteString(s.ConversationSummary)
		sb.WriteString("\n")
	}

	if len(docs) > 0 {
		sb.WriteString("Relevant documents:\n")
		for _, d := range docs {
			sb.WriteString("- ")
			sb.WriteString(d.Content)
			sb.WriteString("\n")
		}
	}

	if attachmentBlock != "" {
		sb.WriteString("Attached file content:\n")
		sb.WriteString(attachmentBlock)
		sb.WriteString("\n")
	}

	recent := s.ConversationHistory
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if len(recent) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, t := range recent {
			sb.WriteString(fmt.Sprintf("user: %s\nassistant: %s\n", t.User, t.Assistant))
		}
	}

	msgs := []llm.Message{{Role: "system", Content: sb.String()}}
	msgs = append(msgs, llm.Message{Role: "user", Content: s.UserMessage})
	return msgs
}

func toStateDocuments(docs []retrieval.Document) []state.Document {
	out := make([]state.Document, len(docs))
	for i, d := range docs {
		out[i] = state.Document{Content: d.Content, Metadata: d.Metadata}
	}
	return out
}

func sourcesFromDocuments(docs []retrieval.Document) []any {
	if len(docs) == 0 {
		return nil
	}
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = map[string]any{"id": d.ID, "metadata": d.Metadata}
	}
	return out
}
