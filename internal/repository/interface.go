package repository

import (
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Pagination 分页参数和结果总数
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination 规范化分页参数，页码从1开始，每页最多100条
func NewPagination(page, pageSize int) *Pagination {
	p := &Pagination{Page: page, PageSize: pageSize}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize <= 0:
		p.PageSize = defaultPageSize
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	}
	return p
}

// Offset 当前页的起始偏移
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages 总页数
func (p *Pagination) TotalPages() int {
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// Scope 作为 gorm scope 使用
func (p *Pagination) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.PageSize)
}

// BaseRepository 所有仓储共有的方法
type BaseRepository interface {
	GetDB() *gorm.DB
}

type baseRepo struct {
	db *gorm.DB
}

// GetDB 返回底层连接
func (r *baseRepo) GetDB() *gorm.DB {
	return r.db
}
