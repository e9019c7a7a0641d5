// Package memfacade provides a fixed in-memory facade.Facade for running
// the concierge service without a configured Postgres DSN — the same
// "degrade to memory when unconfigured" convention internal/sessionstore
// and internal/objectstore follow for their own backends.
package memfacade

import (
	"context"
	"fmt"
	"strings"

	"github.com/northstar-market/concierge/internal/facade"
)

var demoOrders = []facade.Order{
	{OrderNo: "ORD00000000000000AAAAAA", UserID: "demo-user", Status: facade.OrderShipped, TotalPrice: 49.0, ProductID: "p-1001", ProductName: "Go Microservices Starter Kit", CreatedAt: "2026-07-01T00:00:00Z"},
}

var demoProducts = []facade.Product{
	{ProductID: "p-1001", Title: "Go Microservices Starter Kit", Price: 49.0, Status: "active", Difficulty: "intermediate", TechStack: []string{"go", "docker"}},
	{ProductID: "p-1002", Title: "React Dashboard Template", Price: 29.0, Status: "active", Difficulty: "beginner", TechStack: []string{"react", "typescript"}},
}

var demoUsers = map[string]facade.User{
	"demo-user": {UserID: "demo-user", Username: "demo", Email: "demo@example.com"},
}

// New returns a Facade backed by a small fixed catalog, useful for local
// development and demos when no marketplace database is configured.
func New() facade.Facade {
	return facade.Facade{
		Orders:          orderService{},
		Products:        productService{},
		Users:           userService{},
		Browse:          browseService{},
		Recommendations: recommendationService{},
	}
}

type orderService struct{}

func (orderService) List(ctx context.Context, userID string, page, pageSize int, status *facade.OrderStatus) (facade.Page[facade.Order], error) {
	var items []facade.Order
	for _, o := range demoOrders {
		if o.UserID != userID {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		items = append(items, o)
	}
	return facade.Page[facade.Order]{Items: items, Total: len(items)}, nil
}

func (orderService) Get(ctx context.Context, orderNo string) (*facade.Order, error) {
	for _, o := range demoOrders {
		if o.OrderNo == orderNo {
			out := o
			return &out, nil
		}
	}
	return nil, fmt.Errorf("memfacade: order %s not found", orderNo)
}

type productService struct{}

func (productService) Search(ctx context.Context, p facade.ProductSearchParams) (facade.Page[facade.Product], error) {
	var items []facade.Product
	for _, prod := range demoProducts {
		if p.Keyword != "" && !strings.Contains(strings.ToLower(prod.Title), strings.ToLower(p.Keyword)) {
			continue
		}
		if p.MaxPrice != nil && prod.Price > *p.MaxPrice {
			continue
		}
		items = append(items, prod)
	}
	return facade.Page[facade.Product]{Items: items, Total: len(items)}, nil
}

func (productService) Get(ctx context.Context, productID string) (*facade.Product, error) {
	for _, prod := range demoProducts {
		if prod.ProductID == productID {
			out := prod
			return &out, nil
		}
	}
	return nil, fmt.Errorf("memfacade: product %s not found", productID)
}

type userService struct{}

func (userService) Get(ctx context.Context, userID string) (*facade.User, error) {
	if u, ok := demoUsers[userID]; ok {
		out := u
		return &out, nil
	}
	return nil, fmt.Errorf("memfacade: user %s not found", userID)
}

type browseService struct{}

func (browseService) GetUserInterests(ctx context.Context, userID string) (facade.Interests, error) {
	return facade.Interests{}, nil
}

type recommendationService struct{}

func (recommendationService) GetPersonalized(ctx context.Context, userID string, limit int, exclude []string) ([]facade.Product, error) {
	return nil, nil
}
