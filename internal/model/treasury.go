package model

// Treasury 国库模型, 单行记录
// 对应数据库表 treasury
type Treasury struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TotalFees uint64 `gorm:"type:bigint;not null;default:0" json:"total_fees"`            // 累计未提取手续费
	UpdatedAt int64  `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"` // 更新时间 (毫秒)
}

// TableName 返回表名
func (Treasury) TableName() string {
	return "treasury"
}
