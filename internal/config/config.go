package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka"`
	Node     NodeConfig     `yaml:"node" json:"node"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Worker   WorkerConfig   `yaml:"worker" json:"worker"`
	Fees     FeeConfig      `yaml:"fees" json:"fees"`
	Tokens   TokenConfig    `yaml:"tokens" json:"tokens"`
	Accounts AccountConfig  `yaml:"accounts" json:"accounts"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	Database               string `yaml:"database" json:"database"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns           int    `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
	// OrderCacheTTLSec 订单缓存过期时间 (秒)
	OrderCacheTTLSec int `yaml:"order_cache_ttl_sec" json:"order_cache_ttl_sec"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Brokers  []string       `yaml:"brokers" json:"brokers"`
	Producer ProducerConfig `yaml:"producer" json:"producer"`
}

// ProducerConfig Kafka 生产者配置
type ProducerConfig struct {
	RequiredAcks  int `yaml:"required_acks" json:"required_acks"`   // 0=NoResponse, 1=WaitForLocal, -1=WaitForAll
	MaxRetry      int `yaml:"max_retry" json:"max_retry"`           // 最大重试次数
	FlushMessages int `yaml:"flush_messages" json:"flush_messages"` // 批量发送消息数
	FlushBytes    int `yaml:"flush_bytes" json:"flush_bytes"`       // 批量发送字节数
	FlushFreqMs   int `yaml:"flush_freq_ms" json:"flush_freq_ms"`   // 批量发送间隔 (毫秒)
}

// NodeConfig 节点配置
type NodeConfig struct {
	ID int64 `yaml:"id" json:"id"` // 节点 ID (用于 Snowflake)
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	// OrderExpiry 订单过期 Worker 配置
	OrderExpiry OrderExpiryConfig `yaml:"order_expiry" json:"order_expiry"`
}

// OrderExpiryConfig 订单过期配置
type OrderExpiryConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	CheckIntervalSec int  `yaml:"check_interval_sec" json:"check_interval_sec"`
	BatchSize        int  `yaml:"batch_size" json:"batch_size"`
}

// FeeConfig 费用与奖励参数
type FeeConfig struct {
	// FeePercentage 手续费百分比 (整数)
	FeePercentage uint64 `yaml:"fee_percentage" json:"fee_percentage"`

	// DiscountThreshold 享受 VIP 折扣所需的最低质押量
	DiscountThreshold uint64 `yaml:"discount_threshold" json:"discount_threshold"`

	// VipDiscountMultiplier 折扣乘数百分比, 50 表示手续费减半
	VipDiscountMultiplier uint64 `yaml:"vip_discount_multiplier" json:"vip_discount_multiplier"`

	// RewardRatio 每成交 RewardRatio 个单位铸造 1 个奖励代币
	RewardRatio uint64 `yaml:"reward_ratio" json:"reward_ratio"`
}

// TokenConfig 代币配置
type TokenConfig struct {
	// Collateral 抵押品代币符号, 托管与结算均使用该代币
	Collateral string `yaml:"collateral" json:"collateral"`

	// Reward 奖励代币符号, 成交时向吃单方铸造
	Reward string `yaml:"reward" json:"reward"`
}

// AccountConfig 系统账户配置
// 这些账户由结算引擎持有, 只有引擎能发起其出账
type AccountConfig struct {
	Vault       string `yaml:"vault" json:"vault"`               // 订单抵押品托管账户
	StakingPool string `yaml:"staking_pool" json:"staking_pool"` // 质押池账户
	Treasury    string `yaml:"treasury" json:"treasury"`         // 手续费国库账户
	Governance  string `yaml:"governance" json:"governance"`     // 国库提取目标账户
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := defaultConfig()

	// 尝试从配置文件加载
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// 从环境变量覆盖
	loadFromEnv(cfg)

	return cfg, nil
}

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "otcl-settlement",
			HTTPPort: 8080,
			Env:      "dev",
		},
		Database: DatabaseConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			Password:               "postgres",
			Database:               "otcl_settlement",
			MaxIdleConns:           10,
			MaxOpenConns:           100,
			ConnMaxLifetimeMinutes: 30,
		},
		Redis: RedisConfig{
			Enabled:          false, // 默认不启用订单缓存
			Host:             "localhost",
			Port:             6379,
			Password:         "",
			DB:               0,
			PoolSize:         100,
			OrderCacheTTLSec: 300,
		},
		Kafka: KafkaConfig{
			Enabled: false, // 默认不启用 Kafka
			Brokers: []string{"localhost:9092"},
			Producer: ProducerConfig{
				RequiredAcks:  -1, // WaitForAll
				MaxRetry:      3,
				FlushMessages: 100,
				FlushBytes:    1024 * 1024, // 1MB
				FlushFreqMs:   10,
			},
		},
		Node: NodeConfig{
			ID: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Worker: WorkerConfig{
			OrderExpiry: OrderExpiryConfig{
				Enabled:          true,
				CheckIntervalSec: 30,
				BatchSize:        100,
			},
		},
		Fees: FeeConfig{
			FeePercentage:         1,
			DiscountThreshold:     1000,
			VipDiscountMultiplier: 50,
			RewardRatio:           100,
		},
		Tokens: TokenConfig{
			Collateral: "OTCL",
			Reward:     "OTCR",
		},
		Accounts: AccountConfig{
			Vault:       "sys:vault",
			StakingPool: "sys:staking_pool",
			Treasury:    "sys:treasury",
			Governance:  "sys:governance",
		},
	}
}

// loadFromEnv 从环境变量加载配置
func loadFromEnv(cfg *Config) {
	// 数据库配置
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if database := os.Getenv("DB_DATABASE"); database != "" {
		cfg.Database.Database = database
	}

	// Redis 配置
	if enabled := os.Getenv("REDIS_ENABLED"); enabled == "true" {
		cfg.Redis.Enabled = true
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// Kafka 配置
	if enabled := os.Getenv("KAFKA_ENABLED"); enabled == "true" {
		cfg.Kafka.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = []string{brokers}
	}

	// 节点配置 (用于 Snowflake ID 生成，集群部署时每个实例需要不同的 NODE_ID)
	if nodeID := os.Getenv("NODE_ID"); nodeID != "" {
		if id, err := strconv.ParseInt(nodeID, 10, 64); err == nil {
			cfg.Node.ID = id
		}
	}
}
