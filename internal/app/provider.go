package app

import (
	"context"

	"github.com/otcl-exchange/otcl-settlement/internal/service"
	"github.com/otcl-exchange/otcl-settlement/internal/worker"
)

// orderExpirer 适配 SettlementService 到 worker.OrderExpirer
// worker 只关心过期是否成功, 不消费返回的订单
type orderExpirer struct {
	settlementSvc service.SettlementService
}

// NewOrderExpirer 创建订单过期适配器
func NewOrderExpirer(settlementSvc service.SettlementService) worker.OrderExpirer {
	return &orderExpirer{settlementSvc: settlementSvc}
}

// ExpireOrder 过期指定订单
func (e *orderExpirer) ExpireOrder(ctx context.Context, orderID string) error {
	_, err := e.settlementSvc.ExpireOrder(ctx, orderID)
	return err
}
