// Package facade declares the narrow interfaces the orchestration core
// requires from the surrounding marketplace platform (cart/order/review/
// product CRUD, auth, SQL models). The core never reaches past these
// interfaces into platform internals; a pgx-backed implementation is
// provided in internal/facade/pgfacade as a runnable reference, not the
// contract itself.
package facade

import "context"

// OrderStatus is one of the seven lifecycle states an order can be in.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// Order is a purchase record as the marketplace platform exposes it.
type Order struct {
	OrderNo     string      `json:"order_no"`
	UserID      string      `json:"user_id"`
	Status      OrderStatus `json:"status"`
	TotalPrice  float64     `json:"total_price"`
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	CreatedAt   string      `json:"created_at"`
}

// Product is a marketplace listing.
type Product struct {
	ProductID  string   `json:"product_id"`
	Title      string   `json:"title"`
	Price      float64  `json:"price"`
	Status     string   `json:"status"`
	Difficulty string   `json:"difficulty,omitempty"`
	TechStack  []string `json:"tech_stack,omitempty"`
}

// User is a marketplace account as the platform exposes it.
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TechStackCount is one entry of a user's inferred technology interests.
type TechStackCount struct {
	Tech  string `json:"tech"`
	Count int    `json:"count"`
}

// CategoryCount is one entry of a user's inferred category interests.
type CategoryCount struct {
	CategoryID string `json:"category_id"`
	Count      int    `json:"count"`
}

// Interests summarizes a user's browsing history for personalization.
type Interests struct {
	TechStack  []TechStackCount `json:"tech_stack"`
	Categories []CategoryCount  `json:"categories"`
}

// Page is a generic paginated result.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// OrderService looks up and lists a user's orders.
type OrderService interface {
	List(ctx context.Context, userID string, page, pageSize int, status *OrderStatus) (Page[Order], error)
	Get(ctx context.Context, orderNo string) (*Order, error)
}

// ProductSearchParams is the filter set ProductService.Search accepts.
type ProductSearchParams struct {
	Keyword    string
	Status     string
	MaxPrice   *float64
	Difficulty string
	TechStack  string
	Page       int
	PageSize   int
	SortBy     string
	Order      string
}

// ProductService searches and looks up marketplace listings.
type ProductService interface {
	Search(ctx context.Context, p ProductSearchParams) (Page[Product], error)
	Get(ctx context.Context, productID string) (*Product, error)
}

// UserService looks up marketplace accounts.
type UserService interface {
	Get(ctx context.Context, userID string) (*User, error)
}

// BrowseService derives a user's interests from browsing history.
type BrowseService interface {
	GetUserInterests(ctx context.Context, userID string) (Interests, error)
}

// RecommendationService produces personalized product suggestions.
type RecommendationService interface {
	GetPersonalized(ctx context.Context, userID string, limit int, exclude []string) ([]Product, error)
}

// AttachmentService extracts plain text from an uploaded attachment so the
// conversation summarizer and LLM prompts can reason over it.
type AttachmentService interface {
	ExtractText(ctx context.Context, filePath string) (string, error)
}

// Facade bundles every external-data dependency the orchestration core
// calls through, so nodes and tools take a single Facade rather than six
// constructor parameters.
type Facade struct {
	Orders          OrderService
	Products        ProductService
	Users           UserService
	Browse          BrowseService
	Recommendations RecommendationService
	Attachments     AttachmentService
}
