package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/models"
	"github.com/wfunc/pcpos/internal/repository"
)

// TransactionHandler 交易记录查询接口
type TransactionHandler struct {
	repo repository.TransactionRepository
}

// NewTransactionHandler 创建交易记录处理器
func NewTransactionHandler(repo repository.TransactionRepository) *TransactionHandler {
	return &TransactionHandler{repo: repo}
}

// RegisterRoutes 注册路由
func (h *TransactionHandler) RegisterRoutes(router *gin.RouterGroup) {
	txs := router.Group("/transactions")
	txs.Use(h.requireRepository)
	{
		txs.GET("", h.List)            // 分页查询
		txs.GET("/stats", h.Stats)     // 按状态统计
		txs.GET("/:session_id", h.Get) // 查询单笔
	}
}

func (h *TransactionHandler) requireRepository(c *gin.Context) {
	if h.repo == nil {
		respondError(c, apperrors.New(apperrors.ErrDatabaseConnect, "交易记录持久化未启用"))
		c.Abort()
		return
	}
	c.Next()
}

// List 分页查询交易记录
func (h *TransactionHandler) List(c *gin.Context) {
	query := &models.TransactionQuery{
		Status:         models.TransactionStatus(c.Query("status")),
		TerminalNumber: c.Query("terminal"),
		MerchantNumber: c.Query("merchant"),
		STAN:           c.Query("stan"),
	}

	if startTime := c.Query("start_time"); startTime != "" {
		t, err := time.Parse(time.RFC3339, startTime)
		if err != nil {
			respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "start_time 格式错误"))
			return
		}
		query.StartTime = &t
	}
	if endTime := c.Query("end_time"); endTime != "" {
		t, err := time.Parse(time.RFC3339, endTime)
		if err != nil {
			respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "end_time 格式错误"))
			return
		}
		query.EndTime = &t
	}

	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, page, err := h.repo.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        records,
		"pagination":  page,
		"total_pages": page.TotalPages(),
	})
}

// Get 根据会话ID查询交易记录
func (h *TransactionHandler) Get(c *gin.Context) {
	record, err := h.repo.FindBySessionID(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// Stats 按状态统计交易数
func (h *TransactionHandler) Stats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}
