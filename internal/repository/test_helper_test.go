package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/pcpos/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建迁移好的内存数据库
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库每个连接相互独立，只保留一个连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.TransactionRecord{}))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// CreateTestRecord 构造测试用交易记录
func CreateTestRecord(n int, status models.TransactionStatus) *models.TransactionRecord {
	return &models.TransactionRecord{
		SessionID:      fmt.Sprintf("session-%03d", n),
		PortName:       "COM3",
		SerialNumber:   "003000009592",
		TerminalNumber: "96090001",
		MerchantNumber: "017379960902001",
		PaymentType:    "Sale",
		Amount:         "1000",
		STAN:           fmt.Sprintf("%06d", 100000+n),
		RRN:            "654321",
		ResultCode:     "00",
		DateTime:       "202507021200",
		MaskedPAN:      "603799******1234",
		Balance:        "50000",
		Description:    "Transaction Approved",
		Status:         status,
		CompletedAt:    time.Date(2025, 7, 2, 12, 0, n, 0, time.UTC),
	}
}
