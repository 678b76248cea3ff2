package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/otcl-exchange/otcl-settlement/internal/cache"
	"github.com/otcl-exchange/otcl-settlement/internal/config"
	"github.com/otcl-exchange/otcl-settlement/internal/ledger"
	"github.com/otcl-exchange/otcl-settlement/internal/metrics"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/pkg/crypto"
	"github.com/otcl-exchange/otcl-settlement/pkg/id"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// OrderEventPublisher 订单事件发布接口
type OrderEventPublisher interface {
	PublishOrderUpdate(ctx context.Context, order *model.Order) error
}

// FillEventPublisher 成交事件发布接口
type FillEventPublisher interface {
	PublishFill(ctx context.Context, fill *model.Fill) error
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Trader            string // 挂单方账户
	Price             uint64 // 单价
	Quantity          uint64 // 数量, 同时是托管的抵押品数量
	TTL               int64  // 有效期 (秒), 必须为正
	IsMultisig        bool   // 是否多签订单
	MultisigThreshold uint8  // 多签批准阈值
	MultisigGroup     string // 多签账户组 ID
}

// FillResult 成交结果
type FillResult struct {
	Order  *model.Order // 成交后的订单
	Fill   *model.Fill  // 本次成交记录
	Net    uint64       // 扣费后划转给吃单方的净额
	Fee    uint64       // 手续费
	Reward uint64       // 铸造给吃单方的奖励
}

// SettlementService 结算引擎接口
// 订单生命周期: Open -> Filled / Cancelled / Expired, 终态封闭
type SettlementService interface {
	// CreateOrder 创建订单并托管抵押品
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error)

	// CancelOrder 取消订单, 仅挂单方可操作, 剩余抵押品退回
	CancelOrder(ctx context.Context, orderID, caller string) (*model.Order, error)

	// ExpireOrder 过期订单, 任何调用方可触发, 剩余抵押品退回挂单方
	ExpireOrder(ctx context.Context, orderID string) (*model.Order, error)

	// FillOrder 成交订单的一部分或全部
	FillOrder(ctx context.Context, orderID, filler string, fillQuantity uint64) (*FillResult, error)

	// CommitOrder 存入订单条款的承诺哈希, 订单进入隐匿状态
	CommitOrder(ctx context.Context, orderID string, commitHash [crypto.CommitmentSize]byte) error

	// RevealOrder 揭示订单条款, 校验承诺后覆盖条款并清除承诺
	RevealOrder(ctx context.Context, orderID, caller string, price, quantity uint64, ttl int64, isMultisig bool, threshold uint8) (*model.Order, error)

	// GetOrder 查询订单
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
}

// settlementService 结算引擎实现
type settlementService struct {
	repo           *repository.Repository
	orderRepo      repository.OrderRepository
	stakeRepo      repository.StakeRepository
	treasuryRepo   repository.TreasuryRepository
	multisigRepo   repository.MultisigRepository
	fillRepo       repository.FillRepository
	tokenLedger    ledger.TokenLedger
	feeCalc        FeeCalculator
	idGen          *id.Generator
	orderCache     cache.OrderCache    // 可为 nil
	orderPublisher OrderEventPublisher // 可为 nil
	fillPublisher  FillEventPublisher  // 可为 nil
	tokens         config.TokenConfig
	accounts       config.AccountConfig
}

// NewSettlementService 创建结算引擎
func NewSettlementService(
	repo *repository.Repository,
	orderRepo repository.OrderRepository,
	stakeRepo repository.StakeRepository,
	treasuryRepo repository.TreasuryRepository,
	multisigRepo repository.MultisigRepository,
	fillRepo repository.FillRepository,
	tokenLedger ledger.TokenLedger,
	feeCalc FeeCalculator,
	idGen *id.Generator,
	orderCache cache.OrderCache,
	orderPublisher OrderEventPublisher,
	fillPublisher FillEventPublisher,
	tokens config.TokenConfig,
	accounts config.AccountConfig,
) SettlementService {
	return &settlementService{
		repo:           repo,
		orderRepo:      orderRepo,
		stakeRepo:      stakeRepo,
		treasuryRepo:   treasuryRepo,
		multisigRepo:   multisigRepo,
		fillRepo:       fillRepo,
		tokenLedger:    tokenLedger,
		feeCalc:        feeCalc,
		idGen:          idGen,
		orderCache:     orderCache,
		orderPublisher: orderPublisher,
		fillPublisher:  fillPublisher,
		tokens:         tokens,
		accounts:       accounts,
	}
}

// CreateOrder 创建订单并托管抵押品
func (s *settlementService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	if req.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if req.TTL <= 0 {
		return nil, ErrInvalidTTL
	}

	now := time.Now().Unix()
	if req.TTL > math.MaxInt64-now {
		return nil, ErrArithmeticOverflow
	}
	expirationAt := now + req.TTL

	if req.IsMultisig {
		if err := s.validateMultisigTerms(ctx, req.MultisigGroup, req.MultisigThreshold); err != nil {
			return nil, err
		}
	}

	seq, err := s.idGen.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate order id: %w", err)
	}

	order := &model.Order{
		OrderID:           fmt.Sprintf("O%d", seq),
		Trader:            req.Trader,
		Price:             req.Price,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		Status:            model.OrderStatusOpen,
		CreatedAt:         now,
		ExpirationAt:      expirationAt,
		IsMultisig:        req.IsMultisig,
		MultisigThreshold: req.MultisigThreshold,
		MultisigGroup:     req.MultisigGroup,
	}

	err = s.repo.Transaction(ctx, func(txCtx context.Context) error {
		// 抵押品从挂单方划入托管账户, 失败则订单不落库
		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, req.Trader, s.accounts.Vault, req.Quantity); err != nil {
			return err
		}
		return s.orderRepo.Create(txCtx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("trader", order.Trader),
		zap.Uint64("quantity", order.Quantity),
		zap.Bool("is_multisig", order.IsMultisig))
	metrics.RecordOrderCreated()

	s.afterOrderMutation(ctx, order)
	return order, nil
}

// CancelOrder 取消订单
func (s *settlementService) CancelOrder(ctx context.Context, orderID, caller string) (*model.Order, error) {
	var order *model.Order
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByOrderIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Trader != caller {
			return ErrUnauthorized
		}
		if order.Status != model.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		// 多签订单的取消同样需要达到批准阈值
		if err := s.checkApprovalGate(txCtx, order); err != nil {
			return err
		}

		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, s.accounts.Vault, order.Trader, order.RemainingQuantity); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(txCtx, orderID, model.OrderStatusOpen, model.OrderStatusCancelled); err != nil {
			return err
		}
		order.Status = model.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order cancelled",
		zap.String("order_id", order.OrderID),
		zap.Uint64("returned", order.RemainingQuantity))
	metrics.RecordOrderStatus(model.OrderStatusCancelled)

	s.afterOrderMutation(ctx, order)
	return order, nil
}

// ExpireOrder 过期订单
// 不做调用方与批准门槛检查, 保证抵押品总能在到期后退回
func (s *settlementService) ExpireOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var order *model.Order
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByOrderIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		if !order.IsExpired(time.Now().Unix()) {
			return ErrOrderNotExpired
		}

		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, s.accounts.Vault, order.Trader, order.RemainingQuantity); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(txCtx, orderID, model.OrderStatusOpen, model.OrderStatusExpired); err != nil {
			return err
		}
		order.Status = model.OrderStatusExpired
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order expired",
		zap.String("order_id", order.OrderID),
		zap.Uint64("returned", order.RemainingQuantity))
	metrics.RecordOrderStatus(model.OrderStatusExpired)

	s.afterOrderMutation(ctx, order)
	return order, nil
}

// FillOrder 成交订单
// 净额划转、手续费入国库、奖励铸造在同一事务内完成, 任一失败整体回滚
func (s *settlementService) FillOrder(ctx context.Context, orderID, filler string, fillQuantity uint64) (*FillResult, error) {
	var result *FillResult
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.GetByOrderIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		if fillQuantity == 0 || fillQuantity > order.RemainingQuantity {
			return ErrInvalidFillQuantity
		}
		if order.IsExpired(time.Now().Unix()) {
			return ErrOrderExpired
		}
		// 隐匿中的订单不可成交, 揭示后恢复
		if order.HasCommitment() {
			return ErrOrderConcealed
		}
		if err := s.checkApprovalGate(txCtx, order); err != nil {
			return err
		}

		// 吃单方质押量决定折扣, 无质押记录按 0 计
		stakeAmount := uint64(0)
		stakeAccount, err := s.stakeRepo.GetByTrader(txCtx, filler)
		if err == nil {
			stakeAmount = stakeAccount.Amount
		} else if !errors.Is(err, repository.ErrStakeAccountNotFound) {
			return err
		}

		fee, err := s.feeCalc.Fee(fillQuantity, stakeAmount)
		if err != nil {
			return err
		}
		if fee > fillQuantity {
			return ErrArithmeticOverflow
		}
		net := fillQuantity - fee
		reward := s.feeCalc.Reward(fillQuantity)

		newRemaining := order.RemainingQuantity - fillQuantity
		newStatus := model.OrderStatusOpen
		if newRemaining == 0 {
			newStatus = model.OrderStatusFilled
		}
		if err := s.orderRepo.UpdateFill(txCtx, orderID, order.RemainingQuantity, newRemaining, newStatus); err != nil {
			return err
		}

		// 净额划转给吃单方
		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, s.accounts.Vault, filler, net); err != nil {
			return err
		}

		// 手续费划入国库账户并累计
		treasury, err := s.treasuryRepo.GetForUpdate(txCtx)
		if err != nil {
			return err
		}
		if treasury.TotalFees > math.MaxUint64-fee {
			return ErrArithmeticOverflow
		}
		treasury.TotalFees += fee
		if err := s.treasuryRepo.Update(txCtx, treasury); err != nil {
			return err
		}
		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, s.accounts.Vault, s.accounts.Treasury, fee); err != nil {
			return err
		}

		// 奖励铸造给吃单方
		if err := s.tokenLedger.Mint(txCtx, s.tokens.Reward, filler, reward); err != nil {
			return err
		}

		seq, err := s.idGen.Generate()
		if err != nil {
			return fmt.Errorf("generate fill id: %w", err)
		}
		fill := &model.Fill{
			FillID:   fmt.Sprintf("F%d", seq),
			OrderID:  orderID,
			Filler:   filler,
			Quantity: fillQuantity,
			Fee:      fee,
			Net:      net,
			Reward:   reward,
		}
		if err := s.fillRepo.Create(txCtx, fill); err != nil {
			return err
		}

		order.RemainingQuantity = newRemaining
		order.Status = newStatus
		result = &FillResult{
			Order:  order,
			Fill:   fill,
			Net:    net,
			Fee:    fee,
			Reward: reward,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order filled",
		zap.String("order_id", orderID),
		zap.String("filler", filler),
		zap.Uint64("quantity", fillQuantity),
		zap.Uint64("fee", result.Fee),
		zap.Uint64("reward", result.Reward))
	metrics.RecordFill(fillQuantity, result.Fee, result.Reward)
	if result.Order.Status == model.OrderStatusFilled {
		metrics.RecordOrderStatus(model.OrderStatusFilled)
	}

	s.afterOrderMutation(ctx, result.Order)
	if s.fillPublisher != nil {
		if err := s.fillPublisher.PublishFill(ctx, result.Fill); err != nil {
			logger.Warn("publish fill failed",
				zap.String("fill_id", result.Fill.FillID),
				zap.Error(err))
		}
	}
	return result, nil
}

// CommitOrder 存入订单条款的承诺哈希
func (s *settlementService) CommitOrder(ctx context.Context, orderID string, commitHash [crypto.CommitmentSize]byte) error {
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.GetByOrderIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.HasCommitment() {
			return ErrAlreadyCommitted
		}
		return s.orderRepo.UpdateCommitHash(txCtx, orderID, commitHash[:])
	})
	if err != nil {
		return err
	}

	logger.Info("order committed", zap.String("order_id", orderID))
	if s.orderCache != nil {
		s.orderCache.DeleteOrder(ctx, orderID)
	}
	return nil
}

// RevealOrder 揭示订单条款
// 承诺验证通过后覆盖条款, 重置时间与剩余数量, 并清除承诺使订单恢复可成交
func (s *settlementService) RevealOrder(ctx context.Context, orderID, caller string, price, quantity uint64, ttl int64, isMultisig bool, threshold uint8) (*model.Order, error) {
	var order *model.Order
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByOrderIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Trader != caller {
			return ErrUnauthorized
		}
		if order.Status != model.OrderStatusOpen {
			return ErrOrderNotOpen
		}
		if !crypto.VerifyCommitment(order.Commitment(), price, quantity, ttl, isMultisig, threshold) {
			return ErrInvalidReveal
		}
		if ttl <= 0 {
			return ErrInvalidTTL
		}

		now := time.Now().Unix()
		if ttl > math.MaxInt64-now {
			return ErrArithmeticOverflow
		}

		order.Price = price
		order.Quantity = quantity
		order.RemainingQuantity = quantity
		order.CreatedAt = now
		order.ExpirationAt = now + ttl
		order.IsMultisig = isMultisig
		order.MultisigThreshold = threshold
		// 揭示即消耗承诺
		order.CommitHash = make([]byte, crypto.CommitmentSize)
		return s.orderRepo.Update(txCtx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order revealed",
		zap.String("order_id", orderID),
		zap.Uint64("quantity", order.Quantity))

	s.afterOrderMutation(ctx, order)
	return order, nil
}

// GetOrder 查询订单, 缓存命中则跳过数据库
func (s *settlementService) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if s.orderCache != nil {
		if order, err := s.orderCache.GetOrder(ctx, orderID); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := s.orderRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.orderCache != nil {
		if err := s.orderCache.SetOrder(ctx, order); err != nil {
			logger.Warn("cache order failed",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}
	return order, nil
}

// validateMultisigTerms 校验多签参数
func (s *settlementService) validateMultisigTerms(ctx context.Context, groupID string, threshold uint8) error {
	account, err := s.multisigRepo.GetAccount(ctx, groupID)
	if err != nil {
		return err
	}
	owners, err := account.OwnerList()
	if err != nil {
		return fmt.Errorf("parse multisig owners: %w", err)
	}
	if threshold == 0 || int(threshold) > len(owners) {
		return ErrInvalidThreshold
	}
	return nil
}

// checkApprovalGate 多签订单的批准门槛检查
func (s *settlementService) checkApprovalGate(ctx context.Context, order *model.Order) error {
	if !order.IsMultisig {
		return nil
	}
	count, err := s.multisigRepo.CountApprovals(ctx, order.OrderID)
	if err != nil {
		return err
	}
	if count < int64(order.MultisigThreshold) {
		return ErrApprovalRequired
	}
	return nil
}

// afterOrderMutation 事务提交后的发布与缓存维护, 尽力而为
func (s *settlementService) afterOrderMutation(ctx context.Context, order *model.Order) {
	if s.orderCache != nil {
		if err := s.orderCache.DeleteOrder(ctx, order.OrderID); err != nil {
			logger.Warn("invalidate order cache failed",
				zap.String("order_id", order.OrderID),
				zap.Error(err))
		}
	}
	if s.orderPublisher != nil {
		if err := s.orderPublisher.PublishOrderUpdate(ctx, order); err != nil {
			logger.Warn("publish order update failed",
				zap.String("order_id", order.OrderID),
				zap.Error(err))
		}
	}
}
