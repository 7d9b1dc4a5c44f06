package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/pcpos/internal/config"
	"github.com/wfunc/pcpos/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func sqliteConfig(dsn string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}
}

func TestOpenAndMigrate_SQLiteFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pcpos.db")

	db, err := Open(sqliteConfig(dbPath))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	assert.True(t, strings.HasSuffix(sqliteFilePath(db), "pcpos.db"))
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.TransactionRecord{}))

	// 迁移锁已释放
	_, err = os.Stat(dbPath + ".migration.lock")
	assert.True(t, os.IsNotExist(err))

	// 重复迁移无副作用
	require.NoError(t, Migrate(db))
}

func TestOpen_CreatesSQLiteDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "nested", "pcpos.db")

	db, err := Open(sqliteConfig(dbPath))
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)
}

func TestOpen_InMemoryHasNoFilePath(t *testing.T) {
	db, err := Open(sqliteConfig(":memory:"))
	require.NoError(t, err)
	assert.Empty(t, sqliteFilePath(db))
	require.NoError(t, Migrate(db))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestInitAndClose(t *testing.T) {
	t.Cleanup(func() { DB = nil })

	assert.False(t, IsConnected())
	assert.Error(t, AutoMigrate())

	require.NoError(t, Init(sqliteConfig(":memory:")))
	assert.True(t, IsConnected())
	assert.Same(t, DB, GetDB())
	require.NoError(t, AutoMigrate())
	require.NoError(t, Close())
	assert.False(t, IsConnected())
}

func TestMigrationLock(t *testing.T) {
	old := lockRetryInterval
	lockRetryInterval = time.Millisecond
	t.Cleanup(func() { lockRetryInterval = old })

	dbPath := filepath.Join(t.TempDir(), "pcpos.db")

	held, err := acquireMigrationLock(dbPath)
	require.NoError(t, err)

	_, err = acquireMigrationLock(dbPath)
	assert.Error(t, err)

	releaseMigrationLock(held)
	again, err := acquireMigrationLock(dbPath)
	require.NoError(t, err)
	releaseMigrationLock(again)
}

func TestMigrationLock_StaleLockRemoved(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pcpos.db")
	lockPath := dbPath + ".migration.lock"
	require.NoError(t, os.WriteFile(lockPath, nil, 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	lock, err := acquireMigrationLock(dbPath)
	require.NoError(t, err)
	releaseMigrationLock(lock)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, parseLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, parseLogLevel("info"))
	assert.Equal(t, gormlogger.Info, parseLogLevel(""))
}

func TestGormLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core), gormlogger.Warn)

	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), sql, errors.New("no such table"))
	assert.Equal(t, 1, logs.FilterMessage("sql_failed").Len())

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, 1, logs.FilterMessage("sql_slow").Len())

	// warn 级别不输出普通SQL
	l.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 2, logs.Len())

	l.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, 2, logs.Len())

	l.Info(ctx, "hello %s", "gorm")
	assert.Equal(t, 2, logs.Len())
	l.LogMode(gormlogger.Info).Info(ctx, "hello %s", "gorm")
	assert.Equal(t, 1, logs.FilterMessage("hello gorm").Len())
}
