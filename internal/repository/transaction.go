package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/logger"
	"github.com/wfunc/pcpos/internal/models"
	"gorm.io/gorm"
)

// TransactionRepository 终端交易记录仓储接口
type TransactionRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.TransactionRecord) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.TransactionRecord, error)
	FindBySTAN(ctx context.Context, stan string) ([]*models.TransactionRecord, error)
	List(ctx context.Context, query *models.TransactionQuery) ([]*models.TransactionRecord, *Pagination, error)
	Stats(ctx context.Context) (*models.TransactionStats, error)
}

// transactionRepo 交易记录仓储实现
type transactionRepo struct {
	baseRepo
}

// NewTransactionRepository 创建交易记录仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{baseRepo{db: db}}
}

// Create 保存交易记录
func (r *transactionRepo) Create(ctx context.Context, record *models.TransactionRecord) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(record).Error
	logger.LogDatabaseOperation("insert", record.TableName(), time.Since(start), err)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存交易记录失败")
	}
	return nil
}

// FindBySessionID 根据会话ID查找
func (r *transactionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(err, apperrors.ErrNotFound, "交易记录 %s 不存在", sessionID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return &record, nil
}

// FindBySTAN 根据STAN查找，STAN不保证唯一
func (r *transactionRepo) FindBySTAN(ctx context.Context, stan string) ([]*models.TransactionRecord, error) {
	var records []*models.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("stan = ?", stan).
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, nil
}

// List 分页查询交易记录，按时间倒序
func (r *transactionRepo) List(ctx context.Context, query *models.TransactionQuery) ([]*models.TransactionRecord, *Pagination, error) {
	if query == nil {
		query = &models.TransactionQuery{}
	}
	db := r.db.WithContext(ctx).Model(&models.TransactionRecord{})

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.TerminalNumber != "" {
		db = db.Where("terminal_number = ?", query.TerminalNumber)
	}
	if query.MerchantNumber != "" {
		db = db.Where("merchant_number = ?", query.MerchantNumber)
	}
	if query.STAN != "" {
		db = db.Where("stan = ?", query.STAN)
	}
	if query.StartTime != nil {
		db = db.Where("completed_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("completed_at <= ?", *query.EndTime)
	}

	page := NewPagination(query.Page, query.PageSize)
	if err := db.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	var records []*models.TransactionRecord
	if err := db.Scopes(page.Scope).Order("completed_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, page, nil
}

// Stats 按状态统计交易数
func (r *transactionRepo) Stats(ctx context.Context) (*models.TransactionStats, error) {
	var rows []struct {
		Status models.TransactionStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	stats := &models.TransactionStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.TransactionStatusApproved:
			stats.Approved = row.Count
		case models.TransactionStatusDeclined:
			stats.Declined = row.Count
		case models.TransactionStatusInterrupted:
			stats.Interrupted = row.Count
		}
	}
	return stats, nil
}
