package nodes

import (
	"context"
	"strings"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

const attachmentCharCapDocument = 8000

// DocumentNode produces a structured analysis of every readable attachment
// on the current turn.
type DocumentNode struct {
	LLM         llm.Provider
	Attachments facade.AttachmentService
}

func (n *DocumentNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	if n.Attachments == nil || len(s.Attachments) == 0 {
		s.Response = "抱歉，没有检测到可分析的附件，请重新上传。"
		return s, nil
	}

	var names []string
	var combined strings.Builder
	for _, a := range s.Attachments {
		text, err := n.Attachments.ExtractText(ctx, a.FilePath)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		if len(text) > attachmentCharCapDocument {
			text = text[:attachmentCharCapDocument]
		}
		combined.WriteString(text)
		combined.WriteString("\n")
		names = append(names, a.FileName)
	}

	if combined.Len() == 0 {
		s.Response = "抱歉，附件内容无法解析，请确认文件格式后重试。"
		return s, nil
	}

	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Produce a structured multi-section analysis (summary, key points, action items) of the following document content."},
		{Role: "user", Content: combined.String()},
	})
	if err != nil {
		s.Response = "处理您的请求时出现了问题，请稍后再试"
		return s, nil
	}

	s.Response = msg.Content
	s.Sources = []any{map[string]any{"type": "attachment", "files": names}}
	return s, nil
}
