// Package pgfacade is a pgx-backed reference implementation of the
// facade interfaces, wired against a conventional marketplace schema
// (orders, products, users, browse_events). It makes the service runnable
// end to end against a real database; the contract the rest of the
// codebase depends on is internal/facade, not this package.
package pgfacade

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/observability"
)

// New builds a facade.Facade whose five data services all query the given
// pool. Attachments is left nil for the caller to set.
func New(pool *pgxpool.Pool) facade.Facade {
	return facade.Facade{
		Orders:          &orderService{pool: pool},
		Products:        &productService{pool: pool},
		Users:           &userService{pool: pool},
		Browse:          &browseService{pool: pool},
		Recommendations: &recommendationService{pool: pool},
	}
}

type orderService struct{ pool *pgxpool.Pool }

func (s *orderService) List(ctx context.Context, userID string, page, pageSize int, status *facade.OrderStatus) (facade.Page[facade.Order], error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	args := []any{userID}
	where := "user_id = $1"
	if status != nil {
		where += " AND status = $2"
		args = append(args, string(*status))
	}
	args = append(args, pageSize, offset)
	limitPos := len(args) - 1
	offsetPos := len(args)

	query := `SELECT order_no, user_id, status, total_price, product_id, product_name, created_at
		FROM orders WHERE ` + where + ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(offsetPos)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return facade.Page[facade.Order]{}, err
	}
	defer rows.Close()

	var out facade.Page[facade.Order]
	for rows.Next() {
		var o facade.Order
		var st string
		if err := rows.Scan(&o.OrderNo, &o.UserID, &st, &o.TotalPrice, &o.ProductID, &o.ProductName, &o.CreatedAt); err != nil {
			return facade.Page[facade.Order]{}, err
		}
		o.Status = facade.OrderStatus(st)
		out.Items = append(out.Items, o)
	}
	if err := rows.Err(); err != nil {
		return facade.Page[facade.Order]{}, err
	}

	countWhere := "user_id = $1"
	countArgs := []any{userID}
	if status != nil {
		countWhere += " AND status = $2"
		countArgs = append(countArgs, string(*status))
	}
	row := s.pool.QueryRow(ctx, "SELECT count(*) FROM orders WHERE "+countWhere, countArgs...)
	if err := row.Scan(&out.Total); err != nil {
		return facade.Page[facade.Order]{}, err
	}
	return out, nil
}

func (s *orderService) Get(ctx context.Context, orderNo string) (*facade.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT order_no, user_id, status, total_price, product_id, product_name, created_at
		FROM orders WHERE order_no = $1`, orderNo)
	var o facade.Order
	var st string
	if err := row.Scan(&o.OrderNo, &o.UserID, &st, &o.TotalPrice, &o.ProductID, &o.ProductName, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.Status = facade.OrderStatus(st)
	return &o, nil
}

type productService struct{ pool *pgxpool.Pool }

func (s *productService) Search(ctx context.Context, p facade.ProductSearchParams) (facade.Page[facade.Product], error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	where := "1=1"
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where += " AND " + clause + " $" + strconv.Itoa(len(args))
	}
	if p.Keyword != "" {
		add("title ILIKE", "%"+p.Keyword+"%")
	}
	if p.Status != "" {
		add("status =", p.Status)
	}
	if p.MaxPrice != nil {
		add("price <=", *p.MaxPrice)
	}
	if p.Difficulty != "" {
		add("difficulty =", p.Difficulty)
	}
	if p.TechStack != "" {
		args = append(args, p.TechStack)
		where += " AND $" + strconv.Itoa(len(args)) + " = ANY(tech_stack)"
	}

	sortBy := "created_at"
	switch p.SortBy {
	case "price", "created_at":
		sortBy = p.SortBy
	}
	order := "DESC"
	if p.Order == "asc" {
		order = "ASC"
	}

	args = append(args, pageSize, offset)
	limitPos, offsetPos := len(args)-1, len(args)
	query := `SELECT product_id, title, price, status, difficulty, tech_stack FROM products
		WHERE ` + where + ` ORDER BY ` + sortBy + ` ` + order + ` LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(offsetPos)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return facade.Page[facade.Product]{}, err
	}
	defer rows.Close()

	var out facade.Page[facade.Product]
	for rows.Next() {
		var pr facade.Product
		if err := rows.Scan(&pr.ProductID, &pr.Title, &pr.Price, &pr.Status, &pr.Difficulty, &pr.TechStack); err != nil {
			return facade.Page[facade.Product]{}, err
		}
		out.Items = append(out.Items, pr)
	}
	if err := rows.Err(); err != nil {
		return facade.Page[facade.Product]{}, err
	}

	row := s.pool.QueryRow(ctx, "SELECT count(*) FROM products WHERE "+where, args[:len(args)-2]...)
	if err := row.Scan(&out.Total); err != nil {
		return facade.Page[facade.Product]{}, err
	}
	return out, nil
}

func (s *productService) Get(ctx context.Context, productID string) (*facade.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT product_id, title, price, status, difficulty, tech_stack
		FROM products WHERE product_id = $1`, productID)
	var pr facade.Product
	if err := row.Scan(&pr.ProductID, &pr.Title, &pr.Price, &pr.Status, &pr.Difficulty, &pr.TechStack); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &pr, nil
}

type userService struct{ pool *pgxpool.Pool }

func (s *userService) Get(ctx context.Context, userID string) (*facade.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT user_id, username, email FROM users WHERE user_id = $1`, userID)
	var u facade.User
	if err := row.Scan(&u.UserID, &u.Username, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

type browseService struct{ pool *pgxpool.Pool }

func (s *browseService) GetUserInterests(ctx context.Context, userID string) (facade.Interests, error) {
	var out facade.Interests

	techRows, err := s.pool.Query(ctx, `SELECT tech, count(*) AS c FROM browse_events, unnest(tech_stack) AS tech
		WHERE user_id = $1 GROUP BY tech ORDER BY c DESC LIMIT 10`, userID)
	if err != nil {
		return out, err
	}
	defer techRows.Close()
	for techRows.Next() {
		var t facade.TechStackCount
		if err := techRows.Scan(&t.Tech, &t.Count); err != nil {
			return out, err
		}
		out.TechStack = append(out.TechStack, t)
	}
	if err := techRows.Err(); err != nil {
		return out, err
	}

	catRows, err := s.pool.Query(ctx, `SELECT category_id, count(*) AS c FROM browse_events
		WHERE user_id = $1 GROUP BY category_id ORDER BY c DESC LIMIT 10`, userID)
	if err != nil {
		return out, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var c facade.CategoryCount
		if err := catRows.Scan(&c.CategoryID, &c.Count); err != nil {
			return out, err
		}
		out.Categories = append(out.Categories, c)
	}
	return out, catRows.Err()
}

type recommendationService struct{ pool *pgxpool.Pool }

func (s *recommendationService) GetPersonalized(ctx context.Context, userID string, limit int, exclude []string) ([]facade.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	log := observability.LoggerWithTrace(ctx)
	rows, err := s.pool.Query(ctx, `SELECT p.product_id, p.title, p.price, p.status, p.difficulty, p.tech_stack
		FROM products p
		JOIN browse_events b ON b.category_id = ANY(
			SELECT category_id FROM browse_events WHERE user_id = $1
		)
		WHERE p.status = 'published' AND NOT (p.product_id = ANY($2))
		GROUP BY p.product_id
		ORDER BY count(*) DESC
		LIMIT $3`, userID, exclude, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("recommendation_query_failed")
		return nil, err
	}
	defer rows.Close()

	var out []facade.Product
	for rows.Next() {
		var pr facade.Product
		if err := rows.Scan(&pr.ProductID, &pr.Title, &pr.Price, &pr.Status, &pr.Difficulty, &pr.TechStack); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

