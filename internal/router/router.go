// Package router maps a finished intent/tool decision onto the responder
// node key the workflow engine should invoke next. It is a pure function:
// no I/O, no LLM calls.
package router

import (
	"strings"

	"github.com/northstar-market/concierge/internal/state"
)

// Node keys the responder table can return.
const (
	NodeQA              = "qa"
	NodeDocument         = "document"
	NodeTicket           = "ticket"
	NodeClarify          = "clarify"
	NodeProductRecommend = "product_recommendation"
	NodeProductInquiry   = "product_inquiry"
	NodePersonalized     = "personalized"
	NodeOrderQuery       = "order_query"
	NodePurchaseGuide    = "purchase_guide"
)

var intentToNode = map[state.Intent]string{
	state.IntentQA:                    NodeQA,
	state.IntentTicket:                NodeTicket,
	state.IntentDocumentAnalysis:      NodeDocument,
	state.IntentProductInquiry:        NodeProductInquiry,
	state.IntentPurchaseGuide:         NodePurchaseGuide,
	state.IntentOrderQuery:            NodeOrderQuery,
	state.IntentPersonalizedRecommend: NodePersonalized,
}

// Route picks the next node given the classified intent, confidence, and
// the comma-joined tool_used string the function-calling node produced.
// Low confidence always wins to clarify; ProductRecommend intent then takes
// precedence over any tool hint; tool hints then override the plain
// intent→node table.
func Route(intent state.Intent, confidence float64, toolUsed string) string {
	if confidence < 0.6 {
		return NodeClarify
	}
	if intent == state.IntentProductRecommend {
		return NodeProductRecommend
	}
	if containsAny(toolUsed, "query_order", "get_logistics") {
		return NodeOrderQuery
	}
	if containsAny(toolUsed, "search_products") {
		return NodeProductInquiry
	}
	if containsAny(toolUsed, "check_inventory", "calculate_price") {
		return NodePurchaseGuide
	}
	if node, ok := intentToNode[intent]; ok {
		return node
	}
	return NodeClarify
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
