// Package model 定义结算服务的数据模型
package model

import (
	"github.com/otcl-exchange/otcl-settlement/pkg/crypto"
)

// OrderStatus 订单状态
type OrderStatus int8

const (
	OrderStatusOpen      OrderStatus = 0 // 挂单中 (可成交)
	OrderStatusFilled    OrderStatus = 1 // 完全成交
	OrderStatusCancelled OrderStatus = 2 // 已取消
	OrderStatusExpired   OrderStatus = 3 // 已过期
)

// String 返回状态的字符串表示
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusExpired
}

// Order 托管订单模型
// 对应数据库表 otc_orders
type Order struct {
	ID                int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`       // 订单 ID (Snowflake)
	Trader            string      `gorm:"type:varchar(64);index;not null" json:"trader"`               // 挂单方账户
	Price             uint64      `gorm:"type:bigint;not null" json:"price"`                           // 单价
	Quantity          uint64      `gorm:"type:bigint;not null" json:"quantity"`                        // 初始数量 (即托管的抵押品数量)
	RemainingQuantity uint64      `gorm:"type:bigint;not null" json:"remaining_quantity"`              // 剩余可成交数量
	Status            OrderStatus `gorm:"type:smallint;index;not null;default:0" json:"status"`        // 订单状态
	CreatedAt         int64       `gorm:"type:bigint;not null" json:"created_at"`                      // 创建时间 (unix 秒), reveal 时重置
	ExpirationAt      int64       `gorm:"type:bigint;index;not null" json:"expiration_at"`             // 过期时间 (unix 秒)
	IsMultisig        bool        `gorm:"not null;default:false" json:"is_multisig"`                   // 是否多签订单
	MultisigThreshold uint8       `gorm:"type:smallint;not null;default:0" json:"multisig_threshold"`  // 多签批准阈值
	MultisigGroup     string      `gorm:"type:varchar(64)" json:"multisig_group"`                      // 关联的多签账户组
	Approvals         uint8       `gorm:"type:smallint;not null;default:0" json:"approvals"`           // 已批准数 (order_approvals 的缓存计数)
	Priority          uint8       `gorm:"type:smallint;not null;default:0" json:"priority"`            // 优先级 (预留, 仅存储)
	CommitHash        []byte      `gorm:"type:bytea" json:"commit_hash"`                               // 承诺哈希, 空或全零表示未隐匿
	UpdatedAt         int64       `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"` // 更新时间 (毫秒)
}

// TableName 返回表名
func (Order) TableName() string {
	return "otc_orders"
}

// CanTransitionTo 检查状态转换是否合法
// Open 是唯一的非终态, 所有终态均封闭
func (o *Order) CanTransitionTo(newStatus OrderStatus) bool {
	if o.Status != OrderStatusOpen {
		return false
	}
	return newStatus == OrderStatusFilled || newStatus == OrderStatusCancelled ||
		newStatus == OrderStatusExpired
}

// IsExpired 判断订单在给定时刻是否已过期
func (o *Order) IsExpired(now int64) bool {
	return now >= o.ExpirationAt
}

// HasCommitment 判断订单是否处于隐匿 (已承诺未揭示) 状态
func (o *Order) HasCommitment() bool {
	if len(o.CommitHash) != crypto.CommitmentSize {
		return false
	}
	var h [crypto.CommitmentSize]byte
	copy(h[:], o.CommitHash)
	return !crypto.IsZeroCommitment(h)
}

// Commitment 返回定长承诺哈希
func (o *Order) Commitment() [crypto.CommitmentSize]byte {
	var h [crypto.CommitmentSize]byte
	copy(h[:], o.CommitHash)
	return h
}
