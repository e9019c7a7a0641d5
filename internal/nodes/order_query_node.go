package nodes

import (
	"context"
	"fmt"
	"regexp"

	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/state"
)

var orderNumberPattern = regexp.MustCompile(`ORD\d{14}[A-Z0-9]{6}`)

// OrderQueryNode looks up a specific order by number, or lists the user's
// recent orders when no order number is present in the message.
type OrderQueryNode struct {
	Orders facade.OrderService
}

func (n *OrderQueryNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	if orderNo := orderNumberPattern.FindString(s.UserMessage); orderNo != "" {
		return n.describeOrder(ctx, s, orderNo)
	}
	return n.listRecentOrders(ctx, s)
}

func (n *OrderQueryNode) describeOrder(ctx context.Context, s state.ConversationState, orderNo string) (state.ConversationState, error) {
	order, err := n.Orders.Get(ctx, orderNo)
	if err != nil || order == nil {
		s.Response = fmt.Sprintf("没有找到订单 %s，请确认订单号是否正确。", orderNo)
		return s, nil
	}

	s.Response = fmt.Sprintf("订单 %s：%s，状态为 %s，金额 ¥%.2f。", order.OrderNo, order.ProductName, order.Status, order.TotalPrice)
	s.QuickActions = quickActionsForOrderStatus(order)
	return s, nil
}

func (n *OrderQueryNode) listRecentOrders(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	page, err := n.Orders.List(ctx, s.UserID, 1, 5, nil)
	if err != nil || len(page.Items) == 0 {
		s.Response = "您还没有任何订单。"
		return s, nil
	}

	s.Response = "请选择要查询的订单："
	actions := make([]state.QuickAction, 0, len(page.Items))
	for _, o := range page.Items {
		actions = append(actions, state.QuickAction{
			Type:   "button",
			Label:  fmt.Sprintf("%s (%s)", o.OrderNo, o.Status),
			Action: "select_order",
			Data:   map[string]any{"order_no": o.OrderNo},
		})
	}
	s.QuickActions = actions
	return s, nil
}

func quickActionsForOrderStatus(order *facade.Order) []state.QuickAction {
	switch order.Status {
	case facade.OrderShipped:
		return []state.QuickAction{{Type: "button", Label: "查看物流", Action: "view_logistics", Data: map[string]any{"order_no": order.OrderNo}}}
	case facade.OrderPending:
		return []state.QuickAction{{Type: "button", Label: "去支付", Action: "go_to_payment", Data: map[string]any{"order_no": order.OrderNo}}}
	case facade.OrderCompleted:
		return []state.QuickAction{{Type: "button", Label: "申请退款", Action: "request_refund", Data: map[string]any{"order_no": order.OrderNo}}}
	default:
		return nil
	}
}
