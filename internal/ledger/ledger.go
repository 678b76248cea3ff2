// Package ledger 提供代币账本
// 结算引擎通过它完成托管划转与奖励铸造
package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/otcl-exchange/otcl-settlement/internal/repository"
)

var ErrInsufficientBalance = errors.New("insufficient token balance")

// TokenAccount 代币账户模型
// 对应数据库表 token_accounts
type TokenAccount struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Account   string `gorm:"type:varchar(64);uniqueIndex:idx_account_token;not null" json:"account"` // 账户
	Token     string `gorm:"type:varchar(20);uniqueIndex:idx_account_token;not null" json:"token"`   // 代币符号
	Balance   uint64 `gorm:"type:bigint;not null;default:0" json:"balance"`                          // 余额
	UpdatedAt int64  `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`            // 更新时间 (毫秒)
}

// TableName 返回表名
func (TokenAccount) TableName() string {
	return "token_accounts"
}

// TokenLedger 代币账本接口
// 所有操作都可失败, 失败会中止调用方所在的事务
type TokenLedger interface {
	// Transfer 划转代币, 余额不足返回 ErrInsufficientBalance
	Transfer(ctx context.Context, token, from, to string, amount uint64) error

	// Mint 铸造代币到目标账户
	Mint(ctx context.Context, token, to string, amount uint64) error

	// Balance 查询账户余额, 无记录视为 0
	Balance(ctx context.Context, token, account string) (uint64, error)
}

// gormLedger 基于 gorm 的账本实现
// 嵌入仓储基类, 加入调用方 context 携带的事务
type gormLedger struct {
	*repository.Repository
}

// NewGormLedger 创建 gorm 账本
func NewGormLedger(db *gorm.DB) TokenLedger {
	return &gormLedger{
		Repository: repository.NewRepository(db),
	}
}

// Transfer 划转代币
func (l *gormLedger) Transfer(ctx context.Context, token, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	// 余额充足才会扣减, 影响 0 行即余额不足
	result := l.DB(ctx).Model(&TokenAccount{}).
		Where("account = ? AND token = ? AND balance >= ?", from, token, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return fmt.Errorf("debit %s from %s failed: %w", token, from, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}

	return l.credit(ctx, token, to, amount)
}

// Mint 铸造代币到目标账户
func (l *gormLedger) Mint(ctx context.Context, token, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return l.credit(ctx, token, to, amount)
}

// Balance 查询账户余额
func (l *gormLedger) Balance(ctx context.Context, token, account string) (uint64, error) {
	var acct TokenAccount
	result := l.DB(ctx).Where("account = ? AND token = ?", account, token).First(&acct)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance failed: %w", result.Error)
	}
	return acct.Balance, nil
}

// credit 入账, 账户不存在时创建
func (l *gormLedger) credit(ctx context.Context, token, to string, amount uint64) error {
	result := l.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account"}, {Name: "token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": gorm.Expr("token_accounts.balance + ?", amount),
		}),
	}).Create(&TokenAccount{
		Account: to,
		Token:   token,
		Balance: amount,
	})

	if result.Error != nil {
		return fmt.Errorf("credit %s to %s failed: %w", token, to, result.Error)
	}
	return nil
}
