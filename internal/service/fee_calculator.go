package service

import (
	"math"

	"github.com/otcl-exchange/otcl-settlement/internal/config"
)

// FeeCalculator 手续费与奖励计算
// 纯整数运算, 除法向下取整, 参数来自配置
type FeeCalculator interface {
	// Fee 计算成交手续费
	// 质押量达到折扣门槛时按折扣乘数打折, 基础费可能截断为 0
	Fee(fillQuantity, stakeAmount uint64) (uint64, error)

	// Reward 计算吃单方奖励, 不设上限
	Reward(fillQuantity uint64) uint64
}

// feeCalculator 手续费计算实现
type feeCalculator struct {
	cfg config.FeeConfig
}

// NewFeeCalculator 创建手续费计算器
func NewFeeCalculator(cfg config.FeeConfig) FeeCalculator {
	return &feeCalculator{cfg: cfg}
}

// Fee 计算成交手续费
func (c *feeCalculator) Fee(fillQuantity, stakeAmount uint64) (uint64, error) {
	if c.cfg.FeePercentage == 0 {
		return 0, nil
	}
	if fillQuantity > math.MaxUint64/c.cfg.FeePercentage {
		return 0, ErrArithmeticOverflow
	}
	fee := fillQuantity * c.cfg.FeePercentage / 100

	if stakeAmount >= c.cfg.DiscountThreshold {
		if c.cfg.VipDiscountMultiplier != 0 && fee > math.MaxUint64/c.cfg.VipDiscountMultiplier {
			return 0, ErrArithmeticOverflow
		}
		fee = fee * c.cfg.VipDiscountMultiplier / 100
	}
	return fee, nil
}

// Reward 计算吃单方奖励
func (c *feeCalculator) Reward(fillQuantity uint64) uint64 {
	if c.cfg.RewardRatio == 0 {
		return 0
	}
	return fillQuantity / c.cfg.RewardRatio
}
