// Package database 负责交易记录库的连接和迁移
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wfunc/pcpos/internal/config"
	"github.com/wfunc/pcpos/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB 全局数据库实例，Init 之前为 nil
var DB *gorm.DB

// Init 打开全局数据库连接
func Init(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open 按配置打开连接并设置连接池
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(logger.WithModule("database"), parseLogLevel(cfg.LogLevel)),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info("数据库已连接", zap.String("driver", cfg.Driver))
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
}

// ensureSQLiteDir 为 sqlite 文件库创建所在目录
func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建数据库目录 %s 失败: %w", dir, err)
	}
	return nil
}

// Close 关闭全局连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}

// GetDB 返回全局数据库实例
func GetDB() *gorm.DB {
	return DB
}

// IsConnected 全局连接是否可用
func IsConnected() bool {
	if DB == nil {
		return false
	}
	sqlDB, err := DB.DB()
	return err == nil && sqlDB.Ping() == nil
}
