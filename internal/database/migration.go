package database

import (
	"errors"
	"fmt"

	"github.com/wfunc/pcpos/internal/logger"
	"github.com/wfunc/pcpos/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 迁移全局数据库
func AutoMigrate() error {
	if DB == nil {
		return errors.New("数据库未初始化")
	}
	return Migrate(DB)
}

// Migrate 建立交易记录表，sqlite 文件库在迁移期间持有文件锁
func Migrate(db *gorm.DB) error {
	if path := sqliteFilePath(db); path != "" {
		lock, err := acquireMigrationLock(path)
		if err != nil {
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lock)
	}

	record := &models.TransactionRecord{}
	if err := db.AutoMigrate(record); err != nil {
		logger.Error("迁移失败", zap.String("table", record.TableName()), zap.Error(err))
		return err
	}
	logger.Debug("迁移完成", zap.String("table", record.TableName()))
	return nil
}
