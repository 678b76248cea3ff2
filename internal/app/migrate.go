package app

import (
	"gorm.io/gorm"

	"github.com/otcl-exchange/otcl-settlement/internal/ledger"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

// AutoMigrate 自动执行数据库迁移
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Order{},
		&model.Fill{},
		&model.StakeAccount{},
		&model.Treasury{},
		&model.MultiSigAccount{},
		&model.OrderApproval{},
		&ledger.TokenAccount{},
	)
}
