// Package main 提供数据库迁移命令行工具
package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/otcl-exchange/otcl-settlement/internal/app"
	"github.com/otcl-exchange/otcl-settlement/internal/config"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "Database DSN (overrides config)")
	flag.Parse()

	if err := logger.Init(&logger.Config{
		Level:       "info",
		Format:      "console",
		ServiceName: "migrate",
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("load config failed", zap.Error(err))
		}
		dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Database,
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}

	if err := app.AutoMigrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("all tables migrated")
}
