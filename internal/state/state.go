// Package state defines the conversation state threaded through the
// workflow graph and the closed set of intents the classifier may emit.
package state

import "time"

// Intent is the closed label set the classifier must choose from.
type Intent string

const (
	IntentQA                    Intent = "QA"
	IntentTicket                Intent = "Ticket"
	IntentProductRecommend      Intent = "ProductRecommend"
	IntentPersonalizedRecommend Intent = "PersonalizedRecommend"
	IntentProductInquiry        Intent = "ProductInquiry"
	IntentPurchaseGuide         Intent = "PurchaseGuide"
	IntentOrderQuery            Intent = "OrderQuery"
	IntentDocumentAnalysis      Intent = "DocumentAnalysis"
)

// Valid reports whether i is one of the closed set of intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentQA, IntentTicket, IntentProductRecommend, IntentPersonalizedRecommend,
		IntentProductInquiry, IntentPurchaseGuide, IntentOrderQuery, IntentDocumentAnalysis:
		return true
	}
	return false
}

// Attachment is a single uploaded file reference on the current turn.
type Attachment struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// Turn is one (user, assistant) exchange in the session history.
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// IntentRecord is one entry in the per-session intent trail.
type IntentRecord struct {
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Turn       int       `json:"turn"`
	Timestamp  time.Time `json:"timestamp"`
}

// Document is a retrieved passage with its citation metadata.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// ToolResult is either {tool, result} or {tool, error}.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// QuickAction is a UI hint the client can render as a shortcut.
type QuickAction struct {
	Type  string         `json:"type"` // button | link | form | product
	Label string         `json:"label,omitempty"`
	Action string        `json:"action,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Icon  string         `json:"icon,omitempty"`
}

// ConversationState is the value threaded through every node in the graph.
// Nodes mutate it in place and return the updated value.
type ConversationState struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Locale    string `json:"locale"`

	UserMessage string       `json:"user_message"`
	Attachments []Attachment `json:"attachments"`

	ConversationHistory []Turn         `json:"conversation_history"`
	ConversationSummary string        `json:"conversation_summary"`
	IntentHistory       []IntentRecord `json:"intent_history"`

	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`

	RetrievedDocs []Document `json:"retrieved_docs"`

	ToolUsed   string       `json:"tool_used,omitempty"`
	ToolResult []ToolResult `json:"tool_result,omitempty"`

	Response string    `json:"response"`
	Sources  []any     `json:"sources,omitempty"`

	QuickActions        []QuickAction `json:"quick_actions,omitempty"`
	RecommendedProducts  []string      `json:"recommended_products,omitempty"`

	TicketID string `json:"ticket_id,omitempty"`

	Timestamp      time.Time     `json:"timestamp"`
	ProcessingTime time.Duration `json:"-"`
}

// LastTurn returns the highest turn number recorded in IntentHistory, or 0.
func (s *ConversationState) LastTurn() int {
	if len(s.IntentHistory) == 0 {
		return 0
	}
	return s.IntentHistory[len(s.IntentHistory)-1].Turn
}

// AppendIntent returns a NEW slice with rec appended; it never mutates in.
func AppendIntent(in []IntentRecord, rec IntentRecord) []IntentRecord {
	out := make([]IntentRecord, len(in), len(in)+1)
	copy(out, in)
	return append(out, rec)
}
