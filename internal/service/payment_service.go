package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/hardware"
	"github.com/wfunc/pcpos/internal/logger"
	"github.com/wfunc/pcpos/internal/models"
	"github.com/wfunc/pcpos/internal/pcpos"
	"github.com/wfunc/pcpos/internal/report"
	"github.com/wfunc/pcpos/internal/repository"
	"go.uber.org/zap"
)

// Request 一次交易尝试的输入参数
type Request struct {
	Port            string
	SerialNumber    string
	TerminalNumber  string
	MerchantNumber  string
	PaymentType     pcpos.PaymentType
	Amount          string
	SimulateDecline bool
}

// Outcome 交易尝试的结果快照
type Outcome struct {
	SessionID string
	STAN      string
	Status    models.TransactionStatus
	Approved  bool
	CSV       string
	Report    string
}

// PaymentService 驱动单笔交易的完整流程
type PaymentService struct {
	channel hardware.Channel
	latency time.Duration
	repo    repository.TransactionRepository
	logger  *zap.Logger
}

// PaymentOption 服务选项
type PaymentOption func(*PaymentService)

// WithLatency 设置终端处理时长
func WithLatency(d time.Duration) PaymentOption {
	return func(s *PaymentService) {
		s.latency = d
	}
}

// WithRepository 启用交易记录持久化
func WithRepository(repo repository.TransactionRepository) PaymentOption {
	return func(s *PaymentService) {
		s.repo = repo
	}
}

// WithLogger 指定日志器
func WithLogger(l *zap.Logger) PaymentOption {
	return func(s *PaymentService) {
		s.logger = l
	}
}

// NewPaymentService 创建支付服务，channel 为空时使用模拟通道
func NewPaymentService(channel hardware.Channel, opts ...PaymentOption) *PaymentService {
	if channel == nil {
		channel = hardware.NewMockChannel()
	}
	s := &PaymentService{
		channel: channel,
		latency: pcpos.DefaultLatency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.WithModule("service")
	}
	return s
}

// Run 执行一次交易尝试
//
// 参数不完整时不打开通道；通道打开失败时不发起支付；
// 通道打开后无论支付结果如何都会关闭，最后重置会话。
func (s *PaymentService) Run(ctx context.Context, req Request) (*Outcome, error) {
	session := pcpos.NewSession(
		pcpos.WithChannel(s.channel),
		pcpos.WithLatency(s.latency),
		pcpos.WithLogger(s.logger.Named("session")),
	)
	session.SetPortName(req.Port)
	session.SetSerialNumber(req.SerialNumber)
	session.SetTerminalNumber(req.TerminalNumber)
	session.SetMerchantNumber(req.MerchantNumber)
	session.SetPaymentType(req.PaymentType)
	session.SetAmount(req.Amount)

	outcome := &Outcome{SessionID: uuid.NewString()}
	log := s.logger.With(zap.String("session_id", outcome.SessionID))

	if !session.ValidateParameters() {
		log.Warn("交易参数不完整")
		return nil, apperrors.New(apperrors.ErrInvalidParam, "交易参数不完整")
	}

	session.GenerateNewSTAN()
	outcome.STAN = session.STAN()

	if !session.InitCommunication() {
		return nil, apperrors.Newf(apperrors.ErrSerialPortOpen, "打开串口 %s 失败", req.Port)
	}
	defer func() {
		if !session.CloseCommunication() {
			log.Warn("关闭串口失败", zap.Error(apperrors.New(apperrors.ErrSerialPortClose, req.Port)))
		}
		session.Reset()
	}()

	if req.SimulateDecline {
		session.SimulateFailure()
	}

	log.Info(session.BuildTransactionSummary())
	logger.LogTransactionEvent("payment_started", outcome.SessionID,
		zap.String("stan", outcome.STAN),
		zap.String("port", req.Port))

	session.SetObserver(func(ps *pcpos.Session) {
		outcome.Approved = ps.Approved()
		outcome.Status = models.TransactionStatusDeclined
		if outcome.Approved {
			outcome.Status = models.TransactionStatusApproved
		}
		outcome.CSV = ps.ExportTransactionDataCSV()
		outcome.Report = report.Result(ps)
	})

	if err := session.Payment(ctx); err != nil {
		outcome.Status = models.TransactionStatusInterrupted
		logger.LogTransactionEvent("payment_interrupted", outcome.SessionID, zap.Error(err))
		// 取消后的上下文不能再用于写库
		s.persist(context.WithoutCancel(ctx), outcome, session, err)
		return outcome, err
	}

	logger.LogTransactionEvent("payment_completed", outcome.SessionID,
		zap.String("status", string(outcome.Status)),
		zap.String("result_code", session.ResultCode()))
	s.persist(ctx, outcome, session, nil)
	return outcome, nil
}

// persist 保存交易记录，失败只记录日志
func (s *PaymentService) persist(ctx context.Context, outcome *Outcome, session *pcpos.Session, cause error) {
	if s.repo == nil {
		return
	}

	record := &models.TransactionRecord{
		SessionID:      outcome.SessionID,
		PortName:       session.PortName(),
		SerialNumber:   session.SerialNumber(),
		TerminalNumber: session.TerminalNumber(),
		MerchantNumber: session.MerchantNumber(),
		PaymentType:    session.PaymentType().String(),
		Amount:         session.Amount(),
		STAN:           session.STAN(),
		RRN:            session.RRN(),
		ResultCode:     session.ResultCode(),
		DateTime:       session.DateTime(),
		MaskedPAN:      session.MaskedPAN(),
		Balance:        session.Balance(),
		Description:    session.Description(),
		Status:         outcome.Status,
		CSV:            outcome.CSV,
	}
	if cause != nil {
		record.ErrorMsg = cause.Error()
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("保存交易记录失败",
			zap.String("session_id", outcome.SessionID),
			zap.Error(err))
	}
}
