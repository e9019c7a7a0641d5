package nodes

import (
	"context"
	"testing"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

type fakeBrowseService struct {
	interests facade.Interests
	err       error
}

func (f *fakeBrowseService) GetUserInterests(ctx context.Context, userID string) (facade.Interests, error) {
	return f.interests, f.err
}

type fakeRecommendationService struct {
	products []facade.Product
	err      error
}

func (f *fakeRecommendationService) GetPersonalized(ctx context.Context, userID string, limit int, exclude []string) ([]facade.Product, error) {
	return f.products, f.err
}

func TestPersonalizedRecommendNode_NoInterestsPromptsToBrowse(t *testing.T) {
	n := &PersonalizedRecommendNode{
		Browse:          &fakeBrowseService{},
		Recommendations: &fakeRecommendationService{},
	}
	out, err := n.Execute(context.Background(), state.ConversationState{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" || len(out.QuickActions) != 0 {
		t.Fatalf("expected browse prompt with no cards, got %+v", out)
	}
}

func TestPersonalizedRecommendNode_ReturnsPersonalizedCards(t *testing.T) {
	n := &PersonalizedRecommendNode{
		LLM:             &staticProvider{resp: llm.Message{Content: "猜你喜欢这些"}},
		Browse:          &fakeBrowseService{interests: facade.Interests{TechStack: []facade.TechStackCount{{Tech: "go", Count: 3}}}},
		Recommendations: &fakeRecommendationService{products: []facade.Product{{ProductID: "p1", Title: "Widget"}}},
	}
	out, err := n.Execute(context.Background(), state.ConversationState{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.QuickActions) != 1 {
		t.Fatalf("expected one product card, got %+v", out.QuickActions)
	}
}
