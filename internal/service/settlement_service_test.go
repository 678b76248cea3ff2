package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/otcl-exchange/otcl-settlement/internal/config"
	"github.com/otcl-exchange/otcl-settlement/internal/ledger"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/pkg/crypto"
	"github.com/otcl-exchange/otcl-settlement/pkg/id"
)

// testEnv 服务层测试环境
// 使用内存数据库与真实仓储, 事务语义与生产一致
type testEnv struct {
	db           *gorm.DB
	repo         *repository.Repository
	orderRepo    repository.OrderRepository
	stakeRepo    repository.StakeRepository
	ledger       ledger.TokenLedger
	settlement   SettlementService
	staking      StakingService
	approval     ApprovalService
	treasury     TreasuryService
	treasuryRepo repository.TreasuryRepository
	cfg          *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Order{},
		&model.StakeAccount{},
		&model.Treasury{},
		&model.MultiSigAccount{},
		&model.OrderApproval{},
		&model.Fill{},
		&ledger.TokenAccount{},
	))

	cfg := &config.Config{
		Fees: config.FeeConfig{
			FeePercentage:         1,
			DiscountThreshold:     1000,
			VipDiscountMultiplier: 50,
			RewardRatio:           100,
		},
		Tokens: config.TokenConfig{
			Collateral: "OTCL",
			Reward:     "OTCR",
		},
		Accounts: config.AccountConfig{
			Vault:       "sys:vault",
			StakingPool: "sys:staking_pool",
			Treasury:    "sys:treasury",
			Governance:  "sys:governance",
		},
	}

	repo := repository.NewRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	stakeRepo := repository.NewStakeRepository(db)
	treasuryRepo := repository.NewTreasuryRepository(db)
	multisigRepo := repository.NewMultisigRepository(db)
	fillRepo := repository.NewFillRepository(db)
	tokenLedger := ledger.NewGormLedger(db)
	feeCalc := NewFeeCalculator(cfg.Fees)

	idGen, err := id.NewGenerator(1)
	require.NoError(t, err)

	return &testEnv{
		db:           db,
		repo:         repo,
		orderRepo:    orderRepo,
		stakeRepo:    stakeRepo,
		ledger:       tokenLedger,
		treasuryRepo: treasuryRepo,
		settlement: NewSettlementService(repo, orderRepo, stakeRepo, treasuryRepo,
			multisigRepo, fillRepo, tokenLedger, feeCalc, idGen,
			nil, nil, nil, cfg.Tokens, cfg.Accounts),
		staking:  NewStakingService(repo, stakeRepo, tokenLedger, cfg.Tokens, cfg.Accounts),
		approval: NewApprovalService(repo, orderRepo, multisigRepo),
		treasury: NewTreasuryService(repo, treasuryRepo, tokenLedger, cfg.Tokens, cfg.Accounts),
		cfg:      cfg,
	}
}

// fund 给账户铸造抵押品
func (e *testEnv) fund(t *testing.T, account string, amount uint64) {
	require.NoError(t, e.ledger.Mint(context.Background(), "OTCL", account, amount))
}

// balance 查询抵押品余额
func (e *testEnv) balance(t *testing.T, account string) uint64 {
	b, err := e.ledger.Balance(context.Background(), "OTCL", account)
	require.NoError(t, err)
	return b
}

// rewardBalance 查询奖励代币余额
func (e *testEnv) rewardBalance(t *testing.T, account string) uint64 {
	b, err := e.ledger.Balance(context.Background(), "OTCR", account)
	require.NoError(t, err)
	return b
}

// createOrder 创建普通订单
func (e *testEnv) createOrder(t *testing.T, trader string, quantity uint64) *model.Order {
	order, err := e.settlement.CreateOrder(context.Background(), &CreateOrderRequest{
		Trader:   trader,
		Price:    100,
		Quantity: quantity,
		TTL:      3600,
	})
	require.NoError(t, err)
	return order
}

// forceExpire 将订单过期时间改到过去
func (e *testEnv) forceExpire(t *testing.T, orderID string) {
	order, err := e.orderRepo.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	order.ExpirationAt = time.Now().Unix() - 10
	require.NoError(t, e.orderRepo.Update(context.Background(), order))
}

func TestCreateOrder_EscrowsCollateral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 1000)

	order, err := env.settlement.CreateOrder(ctx, &CreateOrderRequest{
		Trader:   "alice",
		Price:    100,
		Quantity: 400,
		TTL:      3600,
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusOpen, order.Status)
	assert.Equal(t, uint64(400), order.RemainingQuantity)
	assert.Equal(t, order.CreatedAt+3600, order.ExpirationAt)
	assert.Equal(t, uint64(600), env.balance(t, "alice"))
	assert.Equal(t, uint64(400), env.balance(t, "sys:vault"))
}

func TestCreateOrder_InsufficientCollateral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.settlement.CreateOrder(ctx, &CreateOrderRequest{
		Trader:   "alice",
		Price:    100,
		Quantity: 400,
		TTL:      3600,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// 托管失败时订单不能落库
	var count int64
	env.db.Model(&model.Order{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 1000)

	_, err := env.settlement.CreateOrder(ctx, &CreateOrderRequest{Trader: "alice", Quantity: 0, TTL: 3600})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.settlement.CreateOrder(ctx, &CreateOrderRequest{Trader: "alice", Quantity: 100, TTL: 0})
	assert.ErrorIs(t, err, ErrInvalidTTL)

	_, err = env.settlement.CreateOrder(ctx, &CreateOrderRequest{Trader: "alice", Quantity: 100, TTL: -5})
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestCancelOrder_ReturnsRemaining(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	// 部分成交 40 后取消, 余下 60 退回
	_, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 40)
	require.NoError(t, err)

	cancelled, err := env.settlement.CancelOrder(ctx, order.OrderID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, uint64(60), env.balance(t, "alice"))
	assert.Equal(t, uint64(0), env.balance(t, "sys:vault"))
}

func TestCancelOrder_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	_, err := env.settlement.CancelOrder(ctx, order.OrderID, "bob")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelOrder_TerminalIsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)
	_, err := env.settlement.CancelOrder(ctx, order.OrderID, "alice")
	require.NoError(t, err)

	// 终态封闭: 重复取消、成交、过期都被拒绝
	_, err = env.settlement.CancelOrder(ctx, order.OrderID, "alice")
	assert.ErrorIs(t, err, ErrOrderNotOpen)

	_, err = env.settlement.FillOrder(ctx, order.OrderID, "bob", 10)
	assert.ErrorIs(t, err, ErrOrderNotOpen)

	_, err = env.settlement.ExpireOrder(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotOpen)
}

func TestExpireOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	// 未到期不能过期
	_, err := env.settlement.ExpireOrder(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotExpired)

	env.forceExpire(t, order.OrderID)

	// 任何调用方都可触发过期, 抵押品退回挂单方
	expired, err := env.settlement.ExpireOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusExpired, expired.Status)
	assert.Equal(t, uint64(100), env.balance(t, "alice"))
}

func TestFillOrder_FeeAndReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 1000)

	order := env.createOrder(t, "alice", 1000)

	// 250 成交: 手续费 250*1/100=2, 净额 248, 奖励 250/100=2
	result, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Fee)
	assert.Equal(t, uint64(248), result.Net)
	assert.Equal(t, uint64(2), result.Reward)
	assert.Equal(t, uint64(750), result.Order.RemainingQuantity)
	assert.Equal(t, model.OrderStatusOpen, result.Order.Status)

	assert.Equal(t, uint64(248), env.balance(t, "bob"))
	assert.Equal(t, uint64(2), env.rewardBalance(t, "bob"))
	assert.Equal(t, uint64(2), env.balance(t, "sys:treasury"))
	assert.Equal(t, uint64(750), env.balance(t, "sys:vault"))

	treasury, err := env.treasury.GetTreasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), treasury.TotalFees)
}

func TestFillOrder_SmallFillTruncatesToZeroFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	// 40*1/100 截断为 0, 净额即成交量
	result, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 40)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Fee)
	assert.Equal(t, uint64(40), result.Net)
	assert.Equal(t, uint64(0), result.Reward)
}

func TestFillOrder_VipDiscount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 1000)
	env.fund(t, "bob", 1000)

	// bob 质押 1000 达到折扣门槛
	_, err := env.staking.StakeTokens(ctx, "bob", 1000)
	require.NoError(t, err)

	order := env.createOrder(t, "alice", 1000)

	// 100 成交: 基础费 1, 折后 1*50/100=0
	result, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Fee)
	assert.Equal(t, uint64(100), result.Net)
}

func TestFillOrder_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	_, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 0)
	assert.ErrorIs(t, err, ErrInvalidFillQuantity)

	_, err = env.settlement.FillOrder(ctx, order.OrderID, "bob", 101)
	assert.ErrorIs(t, err, ErrInvalidFillQuantity)
}

func TestFillOrder_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)
	env.forceExpire(t, order.OrderID)

	_, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 10)
	assert.ErrorIs(t, err, ErrOrderExpired)
}

func TestFillOrder_FullFillClosesOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 500)

	order := env.createOrder(t, "alice", 500)

	result, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 500)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, result.Order.Status)
	assert.Equal(t, uint64(0), result.Order.RemainingQuantity)

	_, err = env.settlement.FillOrder(ctx, order.OrderID, "carol", 1)
	assert.ErrorIs(t, err, ErrOrderNotOpen)
}

func TestFillOrder_RollsBackOnTransferFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	// 人为掏空托管账户, 成交时净额划转必然失败
	require.NoError(t, env.ledger.Transfer(ctx, "OTCL", "sys:vault", "attacker", 100))

	_, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 50)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// 整个事务回滚: 订单、国库、成交记录均不变
	got, err := env.orderRepo.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.RemainingQuantity)
	assert.Equal(t, model.OrderStatusOpen, got.Status)

	treasury, err := env.treasury.GetTreasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), treasury.TotalFees)

	var fills int64
	env.db.Model(&model.Fill{}).Count(&fills)
	assert.Equal(t, int64(0), fills)
	assert.Equal(t, uint64(0), env.balance(t, "bob"))
}

func TestCommitReveal_Flow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 500)

	order := env.createOrder(t, "alice", 500)

	// 提交新条款的承诺
	hash := crypto.HashOrderTerms(120, 500, 7200, false, 0)
	require.NoError(t, env.settlement.CommitOrder(ctx, order.OrderID, hash))

	// 隐匿中不可成交
	_, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 10)
	assert.ErrorIs(t, err, ErrOrderConcealed)

	// 重复提交被拒绝
	err = env.settlement.CommitOrder(ctx, order.OrderID, crypto.HashOrderTerms(1, 1, 1, false, 0))
	assert.ErrorIs(t, err, ErrAlreadyCommitted)

	// 非挂单方不能揭示
	_, err = env.settlement.RevealOrder(ctx, order.OrderID, "bob", 120, 500, 7200, false, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 条款不符揭示失败
	_, err = env.settlement.RevealOrder(ctx, order.OrderID, "alice", 121, 500, 7200, false, 0)
	assert.ErrorIs(t, err, ErrInvalidReveal)

	// 正确揭示: 条款覆盖, 时间与剩余数量重置, 承诺清除
	revealed, err := env.settlement.RevealOrder(ctx, order.OrderID, "alice", 120, 500, 7200, false, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), revealed.Price)
	assert.Equal(t, uint64(500), revealed.RemainingQuantity)
	assert.Equal(t, revealed.CreatedAt+7200, revealed.ExpirationAt)
	assert.False(t, revealed.HasCommitment())

	// 揭示后恢复可成交
	_, err = env.settlement.FillOrder(ctx, order.OrderID, "bob", 10)
	assert.NoError(t, err)
}

func TestMultisig_ApprovalGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 300)

	_, err := env.approval.CreateMultisigAccount(ctx, "G1", []string{"o1", "o2", "o3"}, 2)
	require.NoError(t, err)

	order, err := env.settlement.CreateOrder(ctx, &CreateOrderRequest{
		Trader:            "alice",
		Price:             100,
		Quantity:          300,
		TTL:               3600,
		IsMultisig:        true,
		MultisigThreshold: 2,
		MultisigGroup:     "G1",
	})
	require.NoError(t, err)

	// 批准不足, 成交与取消都被拒绝
	_, err = env.settlement.FillOrder(ctx, order.OrderID, "bob", 100)
	assert.ErrorIs(t, err, ErrApprovalRequired)
	_, err = env.settlement.CancelOrder(ctx, order.OrderID, "alice")
	assert.ErrorIs(t, err, ErrApprovalRequired)

	// 非成员不能批准
	_, err = env.approval.ApproveOrder(ctx, order.OrderID, "outsider")
	assert.ErrorIs(t, err, ErrUnauthorized)

	count, err := env.approval.ApproveOrder(ctx, order.OrderID, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// 同一成员重复批准只计一次
	count, err = env.approval.ApproveOrder(ctx, order.OrderID, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = env.settlement.FillOrder(ctx, order.OrderID, "bob", 100)
	assert.ErrorIs(t, err, ErrApprovalRequired)

	count, err = env.approval.ApproveOrder(ctx, order.OrderID, "o2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// 达到阈值后可成交
	result, err := env.settlement.FillOrder(ctx, order.OrderID, "bob", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), result.Net)
}

func TestMultisig_ExpireBypassesGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 300)

	_, err := env.approval.CreateMultisigAccount(ctx, "G1", []string{"o1", "o2"}, 2)
	require.NoError(t, err)

	order, err := env.settlement.CreateOrder(ctx, &CreateOrderRequest{
		Trader:            "alice",
		Price:             100,
		Quantity:          300,
		TTL:               3600,
		IsMultisig:        true,
		MultisigThreshold: 2,
		MultisigGroup:     "G1",
	})
	require.NoError(t, err)
	env.forceExpire(t, order.OrderID)

	// 过期不受批准门槛约束, 抵押品总能退回
	expired, err := env.settlement.ExpireOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusExpired, expired.Status)
	assert.Equal(t, uint64(300), env.balance(t, "alice"))
}

func TestApproveOrder_NotMultisig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	_, err := env.approval.ApproveOrder(ctx, order.OrderID, "o1")
	assert.ErrorIs(t, err, ErrNotMultisigOrder)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", 100)

	order := env.createOrder(t, "alice", 100)

	got, err := env.settlement.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)

	_, err = env.settlement.GetOrder(ctx, "O404")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}
