package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

var ErrMultisigNotFound = errors.New("multisig account not found")

// MultisigRepository 多签账户与批准记录仓储接口
type MultisigRepository interface {
	// CreateAccount 创建多签账户
	CreateAccount(ctx context.Context, account *model.MultiSigAccount) error

	// GetAccount 根据组 ID 查询多签账户
	GetAccount(ctx context.Context, groupID string) (*model.MultiSigAccount, error)

	// AddApproval 记录批准, 重复批准不报错也不新增
	// 返回是否为新批准
	AddApproval(ctx context.Context, approval *model.OrderApproval) (bool, error)

	// CountApprovals 统计订单的批准数
	CountApprovals(ctx context.Context, orderID string) (int64, error)

	// ListApprovals 查询订单的批准记录
	ListApprovals(ctx context.Context, orderID string) ([]*model.OrderApproval, error)
}

// multisigRepository 多签仓储实现
type multisigRepository struct {
	*Repository
}

// NewMultisigRepository 创建多签仓储
func NewMultisigRepository(db *gorm.DB) MultisigRepository {
	return &multisigRepository{
		Repository: NewRepository(db),
	}
}

// CreateAccount 创建多签账户
func (r *multisigRepository) CreateAccount(ctx context.Context, account *model.MultiSigAccount) error {
	result := r.DB(ctx).Create(account)
	if result.Error != nil {
		return fmt.Errorf("create multisig account failed: %w", result.Error)
	}
	return nil
}

// GetAccount 根据组 ID 查询多签账户
func (r *multisigRepository) GetAccount(ctx context.Context, groupID string) (*model.MultiSigAccount, error) {
	var account model.MultiSigAccount
	result := r.DB(ctx).Where("group_id = ?", groupID).First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMultisigNotFound
		}
		return nil, fmt.Errorf("get multisig account failed: %w", result.Error)
	}
	return &account, nil
}

// AddApproval 记录批准, 重复批准不报错也不新增
func (r *multisigRepository) AddApproval(ctx context.Context, approval *model.OrderApproval) (bool, error) {
	// ON CONFLICT DO NOTHING 保证批准幂等
	result := r.DB(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(approval)

	if result.Error != nil {
		return false, fmt.Errorf("add approval failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountApprovals 统计订单的批准数
func (r *multisigRepository) CountApprovals(ctx context.Context, orderID string) (int64, error) {
	var count int64
	result := r.DB(ctx).Model(&model.OrderApproval{}).
		Where("order_id = ?", orderID).
		Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("count approvals failed: %w", result.Error)
	}
	return count, nil
}

// ListApprovals 查询订单的批准记录
func (r *multisigRepository) ListApprovals(ctx context.Context, orderID string) ([]*model.OrderApproval, error) {
	var approvals []*model.OrderApproval
	result := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&approvals)

	if result.Error != nil {
		return nil, fmt.Errorf("list approvals failed: %w", result.Error)
	}
	return approvals, nil
}
