package model

// VIP 等级划分
const (
	VipTier3Threshold = 5000 // 质押 >= 5000 为 3 级
	VipTier2Threshold = 1000 // 质押 >= 1000 为 2 级
)

// ComputeVipTier 根据质押量计算 VIP 等级
func ComputeVipTier(amount uint64) uint8 {
	switch {
	case amount >= VipTier3Threshold:
		return 3
	case amount >= VipTier2Threshold:
		return 2
	case amount > 0:
		return 1
	default:
		return 0
	}
}

// StakeAccount 质押账户模型
// 对应数据库表 stake_accounts
type StakeAccount struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Trader      string `gorm:"type:varchar(64);uniqueIndex;not null" json:"trader"`         // 质押人账户
	Amount      uint64 `gorm:"type:bigint;not null;default:0" json:"amount"`                // 当前质押量
	LastUpdated int64  `gorm:"type:bigint;not null" json:"last_updated"`                    // 最近变更时间 (unix 秒)
	VipTier     uint8  `gorm:"type:smallint;not null;default:0" json:"vip_tier"`            // 当前 VIP 等级
	UpdatedAt   int64  `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"` // 更新时间 (毫秒)
}

// TableName 返回表名
func (StakeAccount) TableName() string {
	return "stake_accounts"
}
