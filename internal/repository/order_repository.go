package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrOptimisticLock     = errors.New("optimistic lock conflict")
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单
	Create(ctx context.Context, order *model.Order) error

	// GetByOrderID 根据订单 ID 查询
	GetByOrderID(ctx context.Context, orderID string) (*model.Order, error)

	// GetByOrderIDForUpdate 根据订单 ID 查询并加行锁
	GetByOrderIDForUpdate(ctx context.Context, orderID string) (*model.Order, error)

	// ListByTrader 查询挂单方的订单列表
	ListByTrader(ctx context.Context, trader string, statuses []model.OrderStatus, page *Pagination) ([]*model.Order, error)

	// ListExpiredOrders 查询已到期仍处于 Open 状态的订单
	// expireBefore: 过期时间阈值 (unix 秒)
	// limit: 返回数量上限
	ListExpiredOrders(ctx context.Context, expireBefore int64, limit int) ([]*model.Order, error)

	// Update 更新订单
	Update(ctx context.Context, order *model.Order) error

	// UpdateStatus 更新订单状态, 以旧状态为条件实现乐观锁
	UpdateStatus(ctx context.Context, orderID string, oldStatus, newStatus model.OrderStatus) error

	// UpdateFill 原子更新成交进度
	// 以当前剩余数量为条件, 并发成交时只有一个更新生效
	UpdateFill(ctx context.Context, orderID string, oldRemaining, newRemaining uint64, newStatus model.OrderStatus) error

	// UpdateCommitHash 更新承诺哈希
	UpdateCommitHash(ctx context.Context, orderID string, commitHash []byte) error

	// UpdateApprovals 更新批准计数缓存
	UpdateApprovals(ctx context.Context, orderID string, approvals uint8) error
}

// orderRepository 订单仓储实现
type orderRepository struct {
	*Repository
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{
		Repository: NewRepository(db),
	}
}

// Create 创建订单
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	result := r.DB(ctx).Create(order)
	if result.Error != nil {
		// 检查唯一约束冲突
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrOrderAlreadyExists
		}
		return fmt.Errorf("create order failed: %w", result.Error)
	}
	return nil
}

// GetByOrderID 根据订单 ID 查询
func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	result := r.DB(ctx).Where("order_id = ?", orderID).First(&order)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by order_id failed: %w", result.Error)
	}
	return &order, nil
}

// GetByOrderIDForUpdate 根据订单 ID 查询并加行锁
func (r *orderRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*model.Order, error) {
	opts := &QueryOptions{ForUpdate: true}

	var order model.Order
	result := opts.ApplyLock(r.DB(ctx)).Where("order_id = ?", orderID).First(&order)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order for update failed: %w", result.Error)
	}
	return &order, nil
}

// ListByTrader 查询挂单方的订单列表
func (r *orderRepository) ListByTrader(ctx context.Context, trader string, statuses []model.OrderStatus, page *Pagination) ([]*model.Order, error) {
	db := r.DB(ctx).Where("trader = ?", trader)
	if len(statuses) > 0 {
		db = db.Where("status IN ?", statuses)
	}

	// 统计总数
	if page != nil {
		var total int64
		if err := db.Model(&model.Order{}).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count orders failed: %w", err)
		}
		page.Total = total
	}

	var orders []*model.Order
	db = db.Order("created_at DESC")
	if page != nil {
		db = db.Offset(page.Offset()).Limit(page.Limit())
	}

	if err := db.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders by trader failed: %w", err)
	}
	return orders, nil
}

// ListExpiredOrders 查询已到期仍处于 Open 状态的订单
func (r *orderRepository) ListExpiredOrders(ctx context.Context, expireBefore int64, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	result := r.DB(ctx).
		Where("expiration_at <= ? AND status = ?", expireBefore, model.OrderStatusOpen).
		Order("expiration_at ASC").
		Limit(limit).
		Find(&orders)

	if result.Error != nil {
		return nil, fmt.Errorf("list expired orders failed: %w", result.Error)
	}
	return orders, nil
}

// Update 更新订单
func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	result := r.DB(ctx).Save(order)
	if result.Error != nil {
		return fmt.Errorf("update order failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateStatus 更新订单状态, 以旧状态为条件实现乐观锁
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, oldStatus, newStatus model.OrderStatus) error {
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ? AND status = ?", orderID, oldStatus).
		Update("status", newStatus)

	if result.Error != nil {
		return fmt.Errorf("update order status failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// UpdateFill 原子更新成交进度
func (r *orderRepository) UpdateFill(ctx context.Context, orderID string, oldRemaining, newRemaining uint64, newStatus model.OrderStatus) error {
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ? AND status = ? AND remaining_quantity = ?",
			orderID, model.OrderStatusOpen, oldRemaining).
		Updates(map[string]interface{}{
			"remaining_quantity": newRemaining,
			"status":             newStatus,
			"updated_at":         nowMilli(),
		})

	if result.Error != nil {
		return fmt.Errorf("update fill failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// UpdateCommitHash 更新承诺哈希
func (r *orderRepository) UpdateCommitHash(ctx context.Context, orderID string, commitHash []byte) error {
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Update("commit_hash", commitHash)

	if result.Error != nil {
		return fmt.Errorf("update commit hash failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateApprovals 更新批准计数缓存
func (r *orderRepository) UpdateApprovals(ctx context.Context, orderID string, approvals uint8) error {
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Update("approvals", approvals)

	if result.Error != nil {
		return fmt.Errorf("update approvals failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
