package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/otcl-exchange/otcl-settlement/internal/metrics"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// ApprovalService 多签批准服务接口
// 批准按 (订单, 批准人) 记录, 同一成员重复批准只计一次
type ApprovalService interface {
	// CreateMultisigAccount 创建多签账户组
	CreateMultisigAccount(ctx context.Context, groupID string, owners []string, threshold uint8) (*model.MultiSigAccount, error)

	// ApproveOrder 批准多签订单, 返回当前批准数
	ApproveOrder(ctx context.Context, orderID, approver string) (int64, error)

	// GetMultisigAccount 查询多签账户组
	GetMultisigAccount(ctx context.Context, groupID string) (*model.MultiSigAccount, error)
}

// approvalService 多签批准服务实现
type approvalService struct {
	repo         *repository.Repository
	orderRepo    repository.OrderRepository
	multisigRepo repository.MultisigRepository
}

// NewApprovalService 创建多签批准服务
func NewApprovalService(
	repo *repository.Repository,
	orderRepo repository.OrderRepository,
	multisigRepo repository.MultisigRepository,
) ApprovalService {
	return &approvalService{
		repo:         repo,
		orderRepo:    orderRepo,
		multisigRepo: multisigRepo,
	}
}

// CreateMultisigAccount 创建多签账户组
func (s *approvalService) CreateMultisigAccount(ctx context.Context, groupID string, owners []string, threshold uint8) (*model.MultiSigAccount, error) {
	if len(owners) == 0 || len(owners) > model.MaxMultisigOwners {
		return nil, ErrTooManyOwners
	}
	if threshold == 0 || int(threshold) > len(owners) {
		return nil, ErrInvalidThreshold
	}

	account := &model.MultiSigAccount{
		GroupID:   groupID,
		Threshold: threshold,
	}
	if err := account.SetOwners(owners); err != nil {
		return nil, err
	}
	if err := s.multisigRepo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	logger.Info("multisig account created",
		zap.String("group_id", groupID),
		zap.Int("owners", len(owners)),
		zap.Uint8("threshold", threshold))
	return account, nil
}

// ApproveOrder 批准多签订单
func (s *approvalService) ApproveOrder(ctx context.Context, orderID, approver string) (int64, error) {
	var count int64
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.GetByOrderIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.IsMultisig {
			return ErrNotMultisigOrder
		}

		multisig, err := s.multisigRepo.GetAccount(txCtx, order.MultisigGroup)
		if err != nil {
			return err
		}
		if !multisig.HasOwner(approver) {
			return ErrUnauthorized
		}

		// 重复批准幂等, 计数不变
		added, err := s.multisigRepo.AddApproval(txCtx, &model.OrderApproval{
			OrderID:  orderID,
			Approver: approver,
		})
		if err != nil {
			return err
		}

		count, err = s.multisigRepo.CountApprovals(txCtx, orderID)
		if err != nil {
			return err
		}
		if added {
			return s.orderRepo.UpdateApprovals(txCtx, orderID, uint8(count))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("order approved",
		zap.String("order_id", orderID),
		zap.String("approver", approver),
		zap.Int64("approvals", count))
	metrics.RecordApproval()
	return count, nil
}

// GetMultisigAccount 查询多签账户组
func (s *approvalService) GetMultisigAccount(ctx context.Context, groupID string) (*model.MultiSigAccount, error) {
	return s.multisigRepo.GetAccount(ctx, groupID)
}
