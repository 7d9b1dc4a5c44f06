package database

import (
	"fmt"
	"os"
	"time"

	"github.com/wfunc/pcpos/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockAttempts = 30
	lockStaleAge = 5 * time.Minute
)

// lockRetryInterval 获取锁失败后的等待时间
var lockRetryInterval = time.Second

// acquireMigrationLock 获取迁移锁
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"

	for i := 0; i < lockAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			logger.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件太旧时视为残留
		if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > lockStaleAge {
			logger.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		logger.Debug("等待迁移锁...", zap.Int("attempt", i+1))
		time.Sleep(lockRetryInterval)
	}

	return nil, fmt.Errorf("无法获取迁移锁，可能有其他进程正在执行迁移")
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	logger.Debug("释放迁移锁", zap.String("lock", lockPath))
}

// sqliteFilePath 返回 sqlite 文件库路径，内存库和其他驱动返回空
func sqliteFilePath(db *gorm.DB) string {
	if db == nil {
		return ""
	}
	switch db.Dialector.Name() {
	case "sqlite", "sqlite3":
	default:
		return ""
	}

	sqlDB, err := db.DB()
	if err != nil {
		return ""
	}
	rows, err := sqlDB.Query("PRAGMA database_list")
	if err != nil {
		return ""
	}
	defer rows.Close()

	for rows.Next() {
		var seq int
		var name, file string
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return ""
		}
		if name == "main" {
			return file
		}
	}
	return ""
}
