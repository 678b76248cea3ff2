package model

// Fill 成交记录模型
// 对应数据库表 otc_fills, 每次 FillOrder 写入一条用于审计与事件发布
type Fill struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	FillID    string `gorm:"type:varchar(64);uniqueIndex;not null" json:"fill_id"`        // 成交 ID (Snowflake)
	OrderID   string `gorm:"type:varchar(64);index;not null" json:"order_id"`             // 订单 ID
	Filler    string `gorm:"type:varchar(64);index;not null" json:"filler"`               // 吃单方账户
	Quantity  uint64 `gorm:"type:bigint;not null" json:"quantity"`                        // 成交数量
	Fee       uint64 `gorm:"type:bigint;not null" json:"fee"`                             // 手续费
	Net       uint64 `gorm:"type:bigint;not null" json:"net"`                             // 扣费后净额
	Reward    uint64 `gorm:"type:bigint;not null" json:"reward"`                          // 铸造的奖励
	CreatedAt int64  `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"` // 成交时间 (毫秒)
}

// TableName 返回表名
func (Fill) TableName() string {
	return "otc_fills"
}
