package nodes

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/northstar-market/concierge/internal/cache"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
)

// keywordTable is one intent's substring rule set, tried in table order;
// the first matching table wins.
type keywordTable struct {
	intent     state.Intent
	keywords   []string
	confidence float64
}

var keywordTables = []keywordTable{
	{state.IntentOrderQuery, []string{"订单", "物流", "发货", "order", "shipment", "tracking"}, 0.92},
	{state.IntentPurchaseGuide, []string{"怎么买", "支付", "退款", "how to buy", "payment", "refund"}, 0.90},
	{state.IntentTicket, []string{"投诉", "bug", "报错", "complaint", "error", "broken"}, 0.95},
	{state.IntentPersonalizedRecommend, []string{"为我推荐", "猜你喜欢", "recommend for me"}, 0.88},
	{state.IntentProductRecommend, []string{"推荐", "recommend", "suggest"}, 0.88},
}

// IntentRecognitionNode classifies the incoming message using a two-layer
// classifier: an attachment shortcut and keyword tables first, then a
// cached or freshly computed LLM fallback.
type IntentRecognitionNode struct {
	LLM               llm.Provider
	Cache             *cache.LRU
	HistorySize       int
	FallbackThreshold float64
}

func (n *IntentRecognitionNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	log := observability.LoggerWithTrace(ctx)

	intent, confidence := n.classify(ctx, s)

	lastTurn := s.LastTurn()
	s.Intent = intent
	s.Confidence = confidence
	s.IntentHistory = state.AppendIntent(s.IntentHistory, state.IntentRecord{
		Intent:     intent,
		Confidence: confidence,
		Turn:       lastTurn + 1,
		Timestamp:  s.Timestamp,
	})

	log.Info().Str("intent", string(intent)).Float64("confidence", confidence).Msg("intent_decided")
	return s, nil
}

func (n *IntentRecognitionNode) classify(ctx context.Context, s state.ConversationState) (state.Intent, float64) {
	// 1. Attachment shortcut.
	if len(s.Attachments) > 0 && utf8.RuneCountInString(s.UserMessage) <= 20 {
		return state.IntentDocumentAnalysis, 0.95
	}

	// 2. Keyword rules.
	for _, table := range keywordTables {
		for _, kw := range table.keywords {
			if strings.Contains(s.UserMessage, kw) {
				return table.intent, table.confidence
			}
		}
	}

	// 3. Cache lookup.
	key := cacheKey(s.UserMessage)
	if n.Cache != nil {
		if v, ok := n.Cache.Get(key); ok {
			if cached, ok := v.(cachedIntent); ok {
				return cached.intent, cached.confidence
			}
		}
	}

	// 4. LLM fallback.
	intent, confidence := n.llmFallback(ctx, s)

	// 5. Low-confidence fallback to intent history.
	if confidence < n.fallbackThreshold() && len(s.IntentHistory) > 0 {
		for i := len(s.IntentHistory) - 1; i >= 0; i-- {
			if s.IntentHistory[i].Confidence >= n.fallbackThreshold() {
				intent, confidence = s.IntentHistory[i].Intent, s.IntentHistory[i].Confidence
				break
			}
		}
	}

	if n.Cache != nil {
		n.Cache.Set(key, cachedIntent{intent: intent, confidence: confidence})
	}
	return intent, confidence
}

type cachedIntent struct {
	intent     state.Intent
	confidence float64
}

func (n *IntentRecognitionNode) fallbackThreshold() float64 {
	if n.FallbackThreshold <= 0 {
		return 0.5
	}
	return n.FallbackThreshold
}

func cacheKey(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (n *IntentRecognitionNode) llmFallback(ctx context.Context, s state.ConversationState) (state.Intent, float64) {
	if n.LLM == nil {
		return state.IntentQA, 0.5
	}

	prompt := "Classify the user's message into exactly one of: QA, Ticket, ProductRecommend, PersonalizedRecommend, ProductInquiry, PurchaseGuide, OrderQuery, DocumentAnalysis. Respond with only the label."
	if historyBlock := n.renderIntentHistory(s.IntentHistory); historyBlock != "" {
		prompt += "\n\nRecent intent history:\n" + historyBlock
	}

	msg, err := n.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: s.UserMessage},
	})
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("intent_llm_failed")
		return state.IntentQA, 0.5
	}

	return matchIntentLabel(msg.Content), 0.9
}

func (n *IntentRecognitionNode) renderIntentHistory(history []state.IntentRecord) string {
	k := n.HistorySize
	if k <= 0 {
		k = 5
	}
	if len(history) > k {
		history = history[len(history)-k:]
	}
	var sb strings.Builder
	for _, rec := range history {
		sb.WriteString(string(rec.Intent))
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}

var closedIntents = []state.Intent{
	state.IntentQA, state.IntentTicket, state.IntentProductRecommend,
	state.IntentPersonalizedRecommend, state.IntentProductInquiry,
	state.IntentPurchaseGuide, state.IntentOrderQuery, state.IntentDocumentAnalysis,
}

func matchIntentLabel(text string) state.Intent {
	for _, candidate := range closedIntents {
		if strings.Contains(text, string(candidate)) {
			return candidate
		}
	}
	return state.IntentQA
}
