package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/otcl-exchange/otcl-settlement/internal/config"
	"github.com/otcl-exchange/otcl-settlement/internal/ledger"
	"github.com/otcl-exchange/otcl-settlement/internal/metrics"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// TreasuryService 国库服务接口
// 国库只通过成交手续费入账, total_fees 恒非负
type TreasuryService interface {
	// WithdrawTreasury 从国库提取手续费到目标账户
	WithdrawTreasury(ctx context.Context, amount uint64, destination string) (*model.Treasury, error)

	// GetTreasury 查询国库
	GetTreasury(ctx context.Context) (*model.Treasury, error)
}

// treasuryService 国库服务实现
type treasuryService struct {
	repo         *repository.Repository
	treasuryRepo repository.TreasuryRepository
	tokenLedger  ledger.TokenLedger
	tokens       config.TokenConfig
	accounts     config.AccountConfig
}

// NewTreasuryService 创建国库服务
func NewTreasuryService(
	repo *repository.Repository,
	treasuryRepo repository.TreasuryRepository,
	tokenLedger ledger.TokenLedger,
	tokens config.TokenConfig,
	accounts config.AccountConfig,
) TreasuryService {
	return &treasuryService{
		repo:         repo,
		treasuryRepo: treasuryRepo,
		tokenLedger:  tokenLedger,
		tokens:       tokens,
		accounts:     accounts,
	}
}

// WithdrawTreasury 从国库提取手续费
// 调用方的治理授权在上层完成, 这里只保证余额不变式
func (s *treasuryService) WithdrawTreasury(ctx context.Context, amount uint64, destination string) (*model.Treasury, error) {
	if destination == "" {
		destination = s.accounts.Governance
	}

	var treasury *model.Treasury
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		treasury, err = s.treasuryRepo.GetForUpdate(txCtx)
		if err != nil {
			return err
		}
		if treasury.TotalFees < amount {
			return ErrInsufficientTreasury
		}

		treasury.TotalFees -= amount
		if err := s.treasuryRepo.Update(txCtx, treasury); err != nil {
			return err
		}
		return s.tokenLedger.Transfer(txCtx, s.tokens.Collateral, s.accounts.Treasury, destination, amount)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("treasury withdrawn",
		zap.Uint64("amount", amount),
		zap.String("destination", destination),
		zap.Uint64("remaining", treasury.TotalFees))
	metrics.SetTreasuryBalance(treasury.TotalFees)
	return treasury, nil
}

// GetTreasury 查询国库
func (s *treasuryService) GetTreasury(ctx context.Context) (*model.Treasury, error) {
	return s.treasuryRepo.Get(ctx)
}
