package tools

import "github.com/northstar-market/concierge/internal/facade"

// RegisterCanonical wires the seven canonical tools spec'd for the
// marketplace concierge into r, each backed by f.
func RegisterCanonical(r Registry, f facade.Facade) {
	r.Register(&QueryOrderTool{Orders: f.Orders})
	r.Register(&GetLogisticsTool{Orders: f.Orders})
	r.Register(&SearchProductsTool{Products: f.Products})
	r.Register(&CheckInventoryTool{Products: f.Products})
	r.Register(&CalculatePriceTool{Products: f.Products})
	r.Register(&GetUserInfoTool{Users: f.Users})
	r.Register(&GetPersonalizedRecommendationsTool{Recommendations: f.Recommendations})
}
