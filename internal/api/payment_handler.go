package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/pcpos"
	"github.com/wfunc/pcpos/internal/service"
)

// PaymentRequest 发起交易的请求体
type PaymentRequest struct {
	Port            string `json:"port"`
	SerialNumber    string `json:"serial_number"`
	TerminalNumber  string `json:"terminal_number"`
	MerchantNumber  string `json:"merchant_number"`
	PaymentType     string `json:"payment_type"`
	Amount          string `json:"amount"`
	SimulateDecline bool   `json:"simulate_decline"`
}

// PaymentHandler 交易发起接口
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler 创建交易处理器
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// RegisterRoutes 注册路由
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/payments", h.Create)
}

// Create 执行一笔交易，客户端断开时交易被中断
func (h *PaymentHandler) Create(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, "请求体格式错误"))
		return
	}

	paymentType, err := pcpos.ParsePaymentType(req.PaymentType)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
		return
	}

	outcome, err := h.service.Run(c.Request.Context(), service.Request{
		Port:            req.Port,
		SerialNumber:    req.SerialNumber,
		TerminalNumber:  req.TerminalNumber,
		MerchantNumber:  req.MerchantNumber,
		PaymentType:     paymentType,
		Amount:          req.Amount,
		SimulateDecline: req.SimulateDecline,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": outcome.SessionID,
		"stan":       outcome.STAN,
		"status":     outcome.Status,
		"approved":   outcome.Approved,
		"csv":        outcome.CSV,
		"report":     outcome.Report,
	})
}
