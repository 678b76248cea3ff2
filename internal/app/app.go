// Package app 提供应用生命周期管理
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/otcl-exchange/otcl-settlement/internal/cache"
	"github.com/otcl-exchange/otcl-settlement/internal/config"
	"github.com/otcl-exchange/otcl-settlement/internal/kafka"
	"github.com/otcl-exchange/otcl-settlement/internal/ledger"
	"github.com/otcl-exchange/otcl-settlement/internal/publisher"
	"github.com/otcl-exchange/otcl-settlement/internal/repository"
	"github.com/otcl-exchange/otcl-settlement/internal/service"
	"github.com/otcl-exchange/otcl-settlement/internal/worker"
	"github.com/otcl-exchange/otcl-settlement/pkg/id"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// App 应用实例
type App struct {
	cfg *config.Config

	// 基础设施
	db    *gorm.DB
	rdb   *redis.Client
	idGen *id.Generator

	// HTTP (metrics + health)
	httpServer *http.Server

	// Kafka
	producer *kafka.Producer

	// 消息发布者
	orderPublisher *publisher.OrderPublisher
	fillPublisher  *publisher.FillPublisher

	// Workers
	orderExpiryWorker *worker.OrderExpiryWorker

	// 服务层
	settlementSvc service.SettlementService
	stakingSvc    service.StakingService
	approvalSvc   service.ApprovalService
	treasurySvc   service.TreasuryService

	// 仓储层
	repo         *repository.Repository
	orderRepo    repository.OrderRepository
	stakeRepo    repository.StakeRepository
	treasuryRepo repository.TreasuryRepository
	multisigRepo repository.MultisigRepository
	fillRepo     repository.FillRepository

	// 台账与缓存
	tokenLedger ledger.TokenLedger
	orderCache  cache.OrderCache

	// 生命周期
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动应用
func (a *App) Run() error {
	logger.Info("starting service", zap.String("service", a.cfg.Service.Name))

	// 1. 初始化基础设施
	if err := a.initInfra(); err != nil {
		return fmt.Errorf("init infra: %w", err)
	}

	// 2. 初始化仓储层
	a.initRepositories()

	// 3. 初始化 Kafka 与发布者
	if err := a.initKafka(); err != nil {
		return fmt.Errorf("init kafka: %w", err)
	}
	a.initPublishers()

	// 4. 初始化服务层
	a.initServices()

	// 5. 初始化并启动后台任务
	a.initWorkers()
	a.startWorkers()

	// 6. 启动 HTTP 服务器 (metrics + health check)
	a.startHTTPServer()

	// 7. 等待关闭信号
	a.waitForShutdown()

	return nil
}

// initInfra 初始化数据库、Redis 和 ID 生成器
func (a *App) initInfra() error {
	var err error

	a.db, err = openDatabase(&a.cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	if a.cfg.Redis.Enabled {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})

		pingCtx, cancel := context.WithTimeout(a.ctx, 3*time.Second)
		defer cancel()
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		a.orderCache = cache.NewRedisOrderCache(a.rdb, time.Duration(a.cfg.Redis.OrderCacheTTLSec)*time.Second)
		logger.Info("order cache initialized")
	}

	a.idGen, err = id.NewGenerator(a.cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	return nil
}

// openDatabase 打开 PostgreSQL 连接并配置连接池
func openDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	return db, nil
}

// initRepositories 初始化仓储层
func (a *App) initRepositories() {
	a.repo = repository.NewRepository(a.db)
	a.orderRepo = repository.NewOrderRepository(a.db)
	a.stakeRepo = repository.NewStakeRepository(a.db)
	a.treasuryRepo = repository.NewTreasuryRepository(a.db)
	a.multisigRepo = repository.NewMultisigRepository(a.db)
	a.fillRepo = repository.NewFillRepository(a.db)
	a.tokenLedger = ledger.NewGormLedger(a.db)
}

// initKafka 初始化 Kafka 生产者
func (a *App) initKafka() error {
	if !a.cfg.Kafka.Enabled {
		logger.Warn("kafka is disabled")
		return nil
	}

	producerCfg := kafka.DefaultProducerConfig(a.cfg.Kafka.Brokers)
	producerCfg.RequiredAcks = sarama.RequiredAcks(a.cfg.Kafka.Producer.RequiredAcks)
	if a.cfg.Kafka.Producer.MaxRetry > 0 {
		producerCfg.MaxRetry = a.cfg.Kafka.Producer.MaxRetry
	}
	if a.cfg.Kafka.Producer.FlushMessages > 0 {
		producerCfg.FlushMessages = a.cfg.Kafka.Producer.FlushMessages
	}
	if a.cfg.Kafka.Producer.FlushBytes > 0 {
		producerCfg.FlushBytes = a.cfg.Kafka.Producer.FlushBytes
	}
	if a.cfg.Kafka.Producer.FlushFreqMs > 0 {
		producerCfg.FlushFreq = time.Duration(a.cfg.Kafka.Producer.FlushFreqMs) * time.Millisecond
	}

	var err error
	a.producer, err = kafka.NewProducer(producerCfg)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}

	return nil
}

// initPublishers 初始化消息发布者
// producer 为 nil 时发布者静默退化为 no-op
func (a *App) initPublishers() {
	if a.producer == nil {
		a.orderPublisher = publisher.NewOrderPublisher(nil)
		a.fillPublisher = publisher.NewFillPublisher(nil)
		return
	}

	a.orderPublisher = publisher.NewOrderPublisher(a.producer)
	a.fillPublisher = publisher.NewFillPublisher(a.producer)
	logger.Info("message publishers initialized (order-updates, fills)")
}

// initServices 初始化服务层
func (a *App) initServices() {
	feeCalc := service.NewFeeCalculator(a.cfg.Fees)

	a.settlementSvc = service.NewSettlementService(
		a.repo,
		a.orderRepo,
		a.stakeRepo,
		a.treasuryRepo,
		a.multisigRepo,
		a.fillRepo,
		a.tokenLedger,
		feeCalc,
		a.idGen,
		a.orderCache,
		a.orderPublisher,
		a.fillPublisher,
		a.cfg.Tokens,
		a.cfg.Accounts,
	)
	a.stakingSvc = service.NewStakingService(a.repo, a.stakeRepo, a.tokenLedger, a.cfg.Tokens, a.cfg.Accounts)
	a.approvalSvc = service.NewApprovalService(a.repo, a.orderRepo, a.multisigRepo)
	a.treasurySvc = service.NewTreasuryService(a.repo, a.treasuryRepo, a.tokenLedger, a.cfg.Tokens, a.cfg.Accounts)
}

// initWorkers 初始化后台任务
func (a *App) initWorkers() {
	// 订单过期 Worker, 过期退款是抵押品兜底退出通道, 默认启用
	if a.cfg.Worker.OrderExpiry.Enabled {
		expiryCfg := &worker.OrderExpiryWorkerConfig{
			CheckInterval: time.Duration(a.cfg.Worker.OrderExpiry.CheckIntervalSec) * time.Second,
			BatchSize:     a.cfg.Worker.OrderExpiry.BatchSize,
		}
		a.orderExpiryWorker = worker.NewOrderExpiryWorker(expiryCfg, a.orderRepo, NewOrderExpirer(a.settlementSvc))
	}
}

// startWorkers 启动后台任务
func (a *App) startWorkers() {
	if a.orderExpiryWorker != nil {
		a.orderExpiryWorker.Start(a.ctx)
	}
}

// startHTTPServer 启动 HTTP 服务器 (metrics + health check)
func (a *App) startHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := a.db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", a.cfg.Service.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http serve error", zap.Error(err))
		}
	}()
}

// waitForShutdown 等待关闭信号
func (a *App) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	a.shutdown()
}

// shutdown 优雅关闭
func (a *App) shutdown() {
	// 取消 context, 通知所有 goroutine 退出
	a.cancel()

	// 停止订单过期 Worker
	if a.orderExpiryWorker != nil {
		a.orderExpiryWorker.Stop()
	}

	// 停止 Kafka 生产者
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("close kafka producer failed", zap.Error(err))
		}
	}

	// 停止 HTTP 服务器
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
	}

	// 关闭 Redis
	if a.rdb != nil {
		a.rdb.Close()
	}

	// 关闭数据库
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Info("service stopped")
}
