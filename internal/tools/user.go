package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/northstar-market/concierge/internal/facade"
)

// GetUserInfoTool fetches user identity/profile.
type GetUserInfoTool struct {
	Users facade.UserService
}

func (t *GetUserInfoTool) Name() string        { return "get_user_info" }
func (t *GetUserInfoTool) Description() string { return "Fetch user identity/profile" }
func (t *GetUserInfoTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"user_id": map[string]any{"type": "string"}},
		"required":   []string{"user_id"},
	}
}

func (t *GetUserInfoTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid get_user_info arguments: %w", err)
	}
	if args.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	u, err := t.Users.Get(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s not found", args.UserID)
	}
	return u, nil
}

// GetPersonalizedRecommendationsTool surfaces user-history-based product
// suggestions. It is a backup path: the router prefers routing to
// PersonalizedRecommendNode directly, but a model may still call this tool.
type GetPersonalizedRecommendationsTool struct {
	Recommendations facade.RecommendationService
}

func (t *GetPersonalizedRecommendationsTool) Name() string {
	return "get_personalized_recommendations"
}
func (t *GetPersonalizedRecommendationsTool) Description() string {
	return "User-history-based suggestions"
}
func (t *GetPersonalizedRecommendationsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_id": map[string]any{"type": "string"},
			"limit":   map[string]any{"type": "integer"},
		},
		"required": []string{"user_id"},
	}
}

func (t *GetPersonalizedRecommendationsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		UserID string `json:"user_id"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid get_personalized_recommendations arguments: %w", err)
	}
	if args.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	products, err := t.Recommendations.GetPersonalized(ctx, args.UserID, args.Limit, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"products": products}, nil
}
