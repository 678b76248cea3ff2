// Package worker 提供后台任务处理
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otcl-exchange/otcl-settlement/internal/metrics"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// OrderExpirer 订单过期处理接口
// 用于解耦 worker 和 service 包，避免循环依赖
type OrderExpirer interface {
	// ExpireOrder 过期指定订单
	ExpireOrder(ctx context.Context, orderID string) error
}

// OrderExpiryWorkerConfig 订单过期 Worker 配置
type OrderExpiryWorkerConfig struct {
	CheckInterval time.Duration // 检查间隔，默认 30s
	BatchSize     int           // 每批处理数量，默认 100
}

// DefaultOrderExpiryWorkerConfig 返回默认配置
func DefaultOrderExpiryWorkerConfig() *OrderExpiryWorkerConfig {
	return &OrderExpiryWorkerConfig{
		CheckInterval: 30 * time.Second,
		BatchSize:     100,
	}
}

// OrderExpiryWorker 订单过期处理 Worker
// 定期扫描已到期仍为 Open 的订单, 逐个触发过期退款
// 过期不做批准门槛检查, 是多签订单抵押品的兜底退出通道
type OrderExpiryWorker struct {
	cfg          *OrderExpiryWorkerConfig
	orderRepo    repository.OrderRepository
	orderExpirer OrderExpirer
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewOrderExpiryWorker 创建订单过期 Worker
func NewOrderExpiryWorker(
	cfg *OrderExpiryWorkerConfig,
	orderRepo repository.OrderRepository,
	orderExpirer OrderExpirer,
) *OrderExpiryWorker {
	if cfg == nil {
		cfg = DefaultOrderExpiryWorkerConfig()
	}
	return &OrderExpiryWorker{
		cfg:          cfg,
		orderRepo:    orderRepo,
		orderExpirer: orderExpirer,
	}
}

// Start 启动 Worker
func (w *OrderExpiryWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.checkLoop(ctx)

	logger.Info("order expiry worker started",
		zap.Duration("check_interval", w.cfg.CheckInterval),
		zap.Int("batch_size", w.cfg.BatchSize))
}

// Stop 停止 Worker
func (w *OrderExpiryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("order expiry worker stopped")
}

// checkLoop 检查循环
func (w *OrderExpiryWorker) checkLoop(ctx context.Context) {
	defer w.wg.Done()

	// 启动时立即执行一次
	w.processExpiredOrders(ctx)

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processExpiredOrders(ctx)
		}
	}
}

// processExpiredOrders 处理过期订单
func (w *OrderExpiryWorker) processExpiredOrders(ctx context.Context) {
	now := time.Now().Unix()

	orders, err := w.orderRepo.ListExpiredOrders(ctx, now, w.cfg.BatchSize)
	if err != nil {
		logger.Error("list expired orders failed", zap.Error(err))
		metrics.RecordExpiryWorkerRun(false)
		return
	}

	if len(orders) == 0 {
		metrics.RecordExpiryWorkerRun(true)
		return
	}

	logger.Info("found expired open orders",
		zap.Int("count", len(orders)))

	success := true
	for _, order := range orders {
		if err := w.orderExpirer.ExpireOrder(ctx, order.OrderID); err != nil {
			// 单个失败不阻塞本批其余订单
			logger.Error("expire order failed",
				zap.String("order_id", order.OrderID),
				zap.Error(err))
			success = false
			continue
		}

		logger.Debug("order expired",
			zap.String("order_id", order.OrderID),
			zap.String("trader", order.Trader),
			zap.Int64("expiration_at", order.ExpirationAt))
	}
	metrics.RecordExpiryWorkerRun(success)
}
