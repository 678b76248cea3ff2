package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

var ErrStakeAccountNotFound = errors.New("stake account not found")

// StakeRepository 质押账户仓储接口
type StakeRepository interface {
	// GetByTrader 根据账户查询质押记录
	GetByTrader(ctx context.Context, trader string) (*model.StakeAccount, error)

	// GetByTraderForUpdate 根据账户查询质押记录并加行锁
	GetByTraderForUpdate(ctx context.Context, trader string) (*model.StakeAccount, error)

	// Create 创建质押记录
	Create(ctx context.Context, account *model.StakeAccount) error

	// Update 更新质押记录
	Update(ctx context.Context, account *model.StakeAccount) error
}

// stakeRepository 质押账户仓储实现
type stakeRepository struct {
	*Repository
}

// NewStakeRepository 创建质押账户仓储
func NewStakeRepository(db *gorm.DB) StakeRepository {
	return &stakeRepository{
		Repository: NewRepository(db),
	}
}

// GetByTrader 根据账户查询质押记录
func (r *stakeRepository) GetByTrader(ctx context.Context, trader string) (*model.StakeAccount, error) {
	var account model.StakeAccount
	result := r.DB(ctx).Where("trader = ?", trader).First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStakeAccountNotFound
		}
		return nil, fmt.Errorf("get stake account failed: %w", result.Error)
	}
	return &account, nil
}

// GetByTraderForUpdate 根据账户查询质押记录并加行锁
func (r *stakeRepository) GetByTraderForUpdate(ctx context.Context, trader string) (*model.StakeAccount, error) {
	opts := &QueryOptions{ForUpdate: true}

	var account model.StakeAccount
	result := opts.ApplyLock(r.DB(ctx)).Where("trader = ?", trader).First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStakeAccountNotFound
		}
		return nil, fmt.Errorf("get stake account for update failed: %w", result.Error)
	}
	return &account, nil
}

// Create 创建质押记录
func (r *stakeRepository) Create(ctx context.Context, account *model.StakeAccount) error {
	result := r.DB(ctx).Create(account)
	if result.Error != nil {
		return fmt.Errorf("create stake account failed: %w", result.Error)
	}
	return nil
}

// Update 更新质押记录
func (r *stakeRepository) Update(ctx context.Context, account *model.StakeAccount) error {
	result := r.DB(ctx).Save(account)
	if result.Error != nil {
		return fmt.Errorf("update stake account failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStakeAccountNotFound
	}
	return nil
}
