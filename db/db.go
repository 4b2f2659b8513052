package db

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open 连接 Postgres 并 ping 一次；连接池参数偏保守
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// Setup 建表 + 查表数据，服务启动和 toolctl migrate 共用
func Setup(ctx context.Context, conn *gorm.DB) error {
	if err := Migrate(conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := SeedLookups(ctx, conn); err != nil {
		return fmt.Errorf("seed lookups: %w", err)
	}
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Role{}, &models.Department{}, &models.User{}, &models.Credential{}, &models.Invite{},
		&models.ToolCategory{}, &models.ToolStatus{}, &models.ToolCondition{}, &models.Tool{}, &models.ToolItem{},
		&models.LoanRequestStatus{}, &models.LoanRequest{}, &models.LoanRequestItem{},
		&models.Loan{}, &models.LoanItem{},
		&models.ToolItemIssueStatus{}, &models.ToolItemIssue{},
		&models.LeadershipLog{},
	); err != nil {
		return err
	}

	// 逾期查询：只扫未归还的
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_due
	  ON %s (due_at)
	  WHERE returned_at IS NULL;
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	// 按工具 + 状态数可用件数
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_tool_status
	  ON %s (tool_id, status_id);
	`, models.ToolItemTable, models.ToolItemTable)).Error; err != nil {
		return err
	}

	return nil
}
