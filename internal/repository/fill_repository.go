package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

// FillRepository 成交记录仓储接口
type FillRepository interface {
	// Create 写入成交记录
	Create(ctx context.Context, fill *model.Fill) error

	// ListByOrderID 查询订单的成交记录
	ListByOrderID(ctx context.Context, orderID string) ([]*model.Fill, error)

	// ListByFiller 查询吃单方的成交记录
	ListByFiller(ctx context.Context, filler string, page *Pagination) ([]*model.Fill, error)
}

// fillRepository 成交记录仓储实现
type fillRepository struct {
	*Repository
}

// NewFillRepository 创建成交记录仓储
func NewFillRepository(db *gorm.DB) FillRepository {
	return &fillRepository{
		Repository: NewRepository(db),
	}
}

// Create 写入成交记录
func (r *fillRepository) Create(ctx context.Context, fill *model.Fill) error {
	result := r.DB(ctx).Create(fill)
	if result.Error != nil {
		return fmt.Errorf("create fill failed: %w", result.Error)
	}
	return nil
}

// ListByOrderID 查询订单的成交记录
func (r *fillRepository) ListByOrderID(ctx context.Context, orderID string) ([]*model.Fill, error) {
	var fills []*model.Fill
	result := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&fills)

	if result.Error != nil {
		return nil, fmt.Errorf("list fills by order failed: %w", result.Error)
	}
	return fills, nil
}

// ListByFiller 查询吃单方的成交记录
func (r *fillRepository) ListByFiller(ctx context.Context, filler string, page *Pagination) ([]*model.Fill, error) {
	db := r.DB(ctx).Where("filler = ?", filler)

	if page != nil {
		var total int64
		if err := db.Model(&model.Fill{}).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count fills failed: %w", err)
		}
		page.Total = total
	}

	var fills []*model.Fill
	db = db.Order("created_at DESC")
	if page != nil {
		db = db.Offset(page.Offset()).Limit(page.Limit())
	}

	if err := db.Find(&fills).Error; err != nil {
		return nil, fmt.Errorf("list fills by filler failed: %w", err)
	}
	return fills, nil
}
