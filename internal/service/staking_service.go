package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/otcl-exchange/otcl-settlement/internal/config"
	"github.com/otcl-exchange/otcl-settlement/internal/ledger"
	"github.com/otcl-exchange/otcl-settlement/internal/metrics"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// StakingService 质押服务接口
// 质押量决定手续费折扣与 VIP 等级
type StakingService interface {
	// StakeTokens 质押代币, 返回更新后的质押账户
	StakeTokens(ctx context.Context, trader string, amount uint64) (*model.StakeAccount, error)

	// WithdrawStake 提取质押, 余额不足返回 ErrInsufficientStake
	WithdrawStake(ctx context.Context, trader string, amount uint64) (*model.StakeAccount, error)

	// GetStake 查询质押账户, 无记录返回零值账户
	GetStake(ctx context.Context, trader string) (*model.StakeAccount, error)
}

// stakingService 质押服务实现
type stakingService struct {
	repo        *repository.Repository
	stakeRepo   repository.StakeRepository
	tokenLedger ledger.TokenLedger
	tokens      config.TokenConfig
	accounts    config.AccountConfig
}

// NewStakingService 创建质押服务
func NewStakingService(
	repo *repository.Repository,
	stakeRepo repository.StakeRepository,
	tokenLedger ledger.TokenLedger,
	tokens config.TokenConfig,
	accounts config.AccountConfig,
) StakingService {
	return &stakingService{
		repo:        repo,
		stakeRepo:   stakeRepo,
		tokenLedger: tokenLedger,
		tokens:      tokens,
		accounts:    accounts,
	}
}

// StakeTokens 质押代币
func (s *stakingService) StakeTokens(ctx context.Context, trader string, amount uint64) (*model.StakeAccount, error) {
	if amount == 0 {
		return nil, ErrInvalidQuantity
	}

	var account *model.StakeAccount
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		// 质押代币划入质押池, 失败则不记账
		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, trader, s.accounts.StakingPool, amount); err != nil {
			return err
		}

		var err error
		account, err = s.stakeRepo.GetByTraderForUpdate(txCtx, trader)
		if err != nil {
			if !errors.Is(err, repository.ErrStakeAccountNotFound) {
				return err
			}
			account = &model.StakeAccount{Trader: trader}
			if err := s.stakeRepo.Create(txCtx, account); err != nil {
				return err
			}
		}

		if account.Amount > math.MaxUint64-amount {
			return ErrArithmeticOverflow
		}
		account.Amount += amount
		account.LastUpdated = time.Now().Unix()
		account.VipTier = model.ComputeVipTier(account.Amount)
		return s.stakeRepo.Update(txCtx, account)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("tokens staked",
		zap.String("trader", trader),
		zap.Uint64("amount", amount),
		zap.Uint64("total", account.Amount),
		zap.Uint8("vip_tier", account.VipTier))
	metrics.RecordStakeOperation("stake")
	return account, nil
}

// WithdrawStake 提取质押
func (s *stakingService) WithdrawStake(ctx context.Context, trader string, amount uint64) (*model.StakeAccount, error) {
	var account *model.StakeAccount
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		account, err = s.stakeRepo.GetByTraderForUpdate(txCtx, trader)
		if err != nil {
			if errors.Is(err, repository.ErrStakeAccountNotFound) {
				return ErrInsufficientStake
			}
			return err
		}
		if account.Amount < amount {
			return ErrInsufficientStake
		}

		if err := s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, s.accounts.StakingPool, trader, amount); err != nil {
			return err
		}

		account.Amount -= amount
		account.LastUpdated = time.Now().Unix()
		account.VipTier = model.ComputeVipTier(account.Amount)
		return s.stakeRepo.Update(txCtx, account)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("stake withdrawn",
		zap.String("trader", trader),
		zap.Uint64("amount", amount),
		zap.Uint64("remaining", account.Amount),
		zap.Uint8("vip_tier", account.VipTier))
	metrics.RecordStakeOperation("withdraw")
	return account, nil
}

// GetStake 查询质押账户
func (s *stakingService) GetStake(ctx context.Context, trader string) (*model.StakeAccount, error) {
	account, err := s.stakeRepo.GetByTrader(ctx, trader)
	if err != nil {
		if errors.Is(err, repository.ErrStakeAccountNotFound) {
			return &model.StakeAccount{Trader: trader}, nil
		}
		return nil, err
	}
	return account, nil
}
