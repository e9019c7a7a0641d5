package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/northstar-market/concierge/internal/facade"
)

type fakeOrders struct {
	get func(ctx context.Context, orderNo string) (*facade.Order, error)
}

func (f *fakeOrders) List(ctx context.Context, userID string, page, pageSize int, status *facade.OrderStatus) (facade.Page[facade.Order], error) {
	return facade.Page[facade.Order]{}, nil
}

func (f *fakeOrders) Get(ctx context.Context, orderNo string) (*facade.Order, error) {
	return f.get(ctx, orderNo)
}

func TestQueryOrderTool_ReturnsOrder(t *testing.T) {
	tool := &QueryOrderTool{Orders: &fakeOrders{
		get: func(ctx context.Context, orderNo string) (*facade.Order, error) {
			return &facade.Order{OrderNo: orderNo, Status: facade.OrderShipped}, nil
		},
	}}

	out, err := tool.Call(context.Background(), json.RawMessage(`{"order_no":"ORD20240207123456ABCDEF"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order, ok := out.(*facade.Order)
	if !ok {
		t.Fatalf("expected *facade.Order, got %T", out)
	}
	if order.Status != facade.OrderShipped {
		t.Fatalf("unexpected status %q", order.Status)
	}
}

func TestQueryOrderTool_MissingOrderNoIsError(t *testing.T) {
	tool := &QueryOrderTool{Orders: &fakeOrders{}}
	if _, err := tool.Call(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing order_no")
	}
}

func TestQueryOrderTool_UpstreamErrorSurfacesToCaller(t *testing.T) {
	tool := &QueryOrderTool{Orders: &fakeOrders{
		get: func(ctx context.Context, orderNo string) (*facade.Order, error) {
			return nil, errors.New("db unavailable")
		},
	}}
	if _, err := tool.Call(context.Background(), json.RawMessage(`{"order_no":"X"}`)); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestRegistry_DispatchNeverErrorsOnFailingTool(t *testing.T) {
	r := NewRegistry()
	r.Register(&QueryOrderTool{Orders: &fakeOrders{
		get: func(ctx context.Context, orderNo string) (*facade.Order, error) {
			return nil, errors.New("boom")
		},
	}})

	raw := r.Dispatch(context.Background(), "query_order", json.RawMessage(`{"order_no":"ORD1"}`))
	var payload struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("dispatch payload not valid JSON: %v", err)
	}
	if payload.Success {
		t.Fatal("expected success=false")
	}
	if payload.Error == "" {
		t.Fatal("expected non-empty error string")
	}
}

func TestGetLogisticsTool_ReturnsStatus(t *testing.T) {
	tool := &GetLogisticsTool{Orders: &fakeOrders{
		get: func(ctx context.Context, orderNo string) (*facade.Order, error) {
			return &facade.Order{OrderNo: orderNo, Status: facade.OrderDelivered}, nil
		},
	}}
	out, err := tool.Call(context.Background(), json.RawMessage(`{"order_no":"ORD1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["status"] != facade.OrderDelivered {
		t.Fatalf("unexpected result %v", out)
	}
}
