package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

var ErrTreasuryNotFound = errors.New("treasury not found")

// TreasuryRepository 国库仓储接口
// 国库为单行记录, 不存在时按零余额初始化
type TreasuryRepository interface {
	// Get 查询国库记录, 不存在时创建零余额记录
	Get(ctx context.Context) (*model.Treasury, error)

	// GetForUpdate 查询国库记录并加行锁
	GetForUpdate(ctx context.Context) (*model.Treasury, error)

	// Update 更新国库记录
	Update(ctx context.Context, treasury *model.Treasury) error
}

// treasuryRepository 国库仓储实现
type treasuryRepository struct {
	*Repository
}

// NewTreasuryRepository 创建国库仓储
func NewTreasuryRepository(db *gorm.DB) TreasuryRepository {
	return &treasuryRepository{
		Repository: NewRepository(db),
	}
}

// Get 查询国库记录, 不存在时创建零余额记录
func (r *treasuryRepository) Get(ctx context.Context) (*model.Treasury, error) {
	var treasury model.Treasury
	result := r.DB(ctx).First(&treasury)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			treasury = model.Treasury{TotalFees: 0}
			if err := r.DB(ctx).Create(&treasury).Error; err != nil {
				return nil, fmt.Errorf("init treasury failed: %w", err)
			}
			return &treasury, nil
		}
		return nil, fmt.Errorf("get treasury failed: %w", result.Error)
	}
	return &treasury, nil
}

// GetForUpdate 查询国库记录并加行锁
func (r *treasuryRepository) GetForUpdate(ctx context.Context) (*model.Treasury, error) {
	opts := &QueryOptions{ForUpdate: true}

	var treasury model.Treasury
	result := opts.ApplyLock(r.DB(ctx)).First(&treasury)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			treasury = model.Treasury{TotalFees: 0}
			if err := r.DB(ctx).Create(&treasury).Error; err != nil {
				return nil, fmt.Errorf("init treasury failed: %w", err)
			}
			return &treasury, nil
		}
		return nil, fmt.Errorf("get treasury for update failed: %w", result.Error)
	}
	return &treasury, nil
}

// Update 更新国库记录
func (r *treasuryRepository) Update(ctx context.Context, treasury *model.Treasury) error {
	result := r.DB(ctx).Save(treasury)
	if result.Error != nil {
		return fmt.Errorf("update treasury failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTreasuryNotFound
	}
	return nil
}
