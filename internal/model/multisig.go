package model

import (
	"encoding/json"
)

// MaxMultisigOwners 多签账户最大成员数
const MaxMultisigOwners = 10

// MultiSigAccount 多签账户模型
// 对应数据库表 multisig_accounts
type MultiSigAccount struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"group_id"`       // 多签组 ID
	Owners    string `gorm:"type:text;not null" json:"owners"`                            // 成员账户列表 (JSON 数组, 最多 10 个)
	Threshold uint8  `gorm:"type:smallint;not null" json:"threshold"`                     // 批准阈值, 不超过成员数
	CreatedAt int64  `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"` // 创建时间 (毫秒)
	UpdatedAt int64  `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"` // 更新时间 (毫秒)
}

// TableName 返回表名
func (MultiSigAccount) TableName() string {
	return "multisig_accounts"
}

// OwnerList 解析成员账户列表
func (m *MultiSigAccount) OwnerList() ([]string, error) {
	if m.Owners == "" {
		return nil, nil
	}
	var owners []string
	if err := json.Unmarshal([]byte(m.Owners), &owners); err != nil {
		return nil, err
	}
	return owners, nil
}

// SetOwners 序列化并写入成员账户列表
func (m *MultiSigAccount) SetOwners(owners []string) error {
	data, err := json.Marshal(owners)
	if err != nil {
		return err
	}
	m.Owners = string(data)
	return nil
}

// HasOwner 判断账户是否为多签成员
func (m *MultiSigAccount) HasOwner(account string) bool {
	owners, err := m.OwnerList()
	if err != nil {
		return false
	}
	for _, o := range owners {
		if o == account {
			return true
		}
	}
	return false
}

// OrderApproval 订单批准记录
// 对应数据库表 order_approvals, (order_id, approver) 唯一保证批准幂等
type OrderApproval struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   string `gorm:"type:varchar(64);uniqueIndex:idx_order_approver;not null" json:"order_id"` // 订单 ID
	Approver  string `gorm:"type:varchar(64);uniqueIndex:idx_order_approver;not null" json:"approver"` // 批准人账户
	CreatedAt int64  `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`              // 批准时间 (毫秒)
}

// TableName 返回表名
func (OrderApproval) TableName() string {
	return "order_approvals"
}
