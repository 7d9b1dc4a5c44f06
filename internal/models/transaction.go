package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionStatus 交易记录状态
type TransactionStatus string

const (
	TransactionStatusApproved    TransactionStatus = "approved"
	TransactionStatusDeclined    TransactionStatus = "declined"
	TransactionStatusInterrupted TransactionStatus = "interrupted"
)

// TransactionRecord 一次终端交易尝试的结果记录
//
// masked_pan 列只保存掩码后的卡号，csv 列为导出的原始行。
type TransactionRecord struct {
	BaseModel
	SessionID      string            `gorm:"uniqueIndex;size:36;not null" json:"session_id"`
	PortName       string            `gorm:"size:64" json:"port_name"`
	SerialNumber   string            `gorm:"size:32" json:"serial_number"`
	TerminalNumber string            `gorm:"size:16;index" json:"terminal_number"`
	MerchantNumber string            `gorm:"size:32;index" json:"merchant_number"`
	PaymentType    string            `gorm:"size:16" json:"payment_type"` // Sale, Refund
	Amount         string            `gorm:"size:32" json:"amount"`
	STAN           string            `gorm:"column:stan;size:6;index" json:"stan"`
	RRN            string            `gorm:"column:rrn;size:32" json:"rrn"`
	ResultCode     string            `gorm:"size:2" json:"result_code"`
	DateTime       string            `gorm:"size:14" json:"date_time"`
	MaskedPAN      string            `gorm:"column:masked_pan;size:32" json:"masked_pan"`
	Balance        string            `gorm:"size:32" json:"balance"`
	Description    string            `gorm:"size:255" json:"description"`
	Status         TransactionStatus `gorm:"size:20;index;not null" json:"status"`
	CSV            string            `gorm:"column:csv;type:text" json:"csv"`
	ErrorMsg       string            `gorm:"type:text" json:"error_msg,omitempty"`
	CompletedAt    time.Time         `gorm:"index" json:"completed_at"`
}

// TableName 指定表名
func (TransactionRecord) TableName() string {
	return "pos_transactions"
}

// BeforeCreate 创建前的钩子
func (r *TransactionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = TransactionStatusDeclined
	}
	return nil
}

// TransactionQuery 查询参数
type TransactionQuery struct {
	Status         TransactionStatus `json:"status,omitempty"`
	TerminalNumber string            `json:"terminal_number,omitempty"`
	MerchantNumber string            `json:"merchant_number,omitempty"`
	STAN           string            `json:"stan,omitempty"`
	StartTime      *time.Time        `json:"start_time,omitempty"`
	EndTime        *time.Time        `json:"end_time,omitempty"`
	Page           int               `json:"page,omitempty"`
	PageSize       int               `json:"page_size,omitempty"`
}

// TransactionStats 统计信息
type TransactionStats struct {
	Total       int64 `json:"total"`
	Approved    int64 `json:"approved"`
	Declined    int64 `json:"declined"`
	Interrupted int64 `json:"interrupted"`
}
