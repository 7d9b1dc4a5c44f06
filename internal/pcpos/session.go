// Package pcpos 实现与串口支付终端进行单笔刷卡交易的客户端控制逻辑。
//
// Session 表示一次交易尝试：设置参数、校验、打开通道、生成STAN、
// 发起支付、输出报告、关闭通道并重置。Session 不是并发安全的，
// 由创建者独占使用。
package pcpos

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/hardware"
	"github.com/wfunc/pcpos/internal/logger"
	"go.uber.org/zap"
)

// 新会话的结果字段默认值
const (
	DefaultSTAN        = "123456"
	DefaultRRN         = "654321"
	DefaultResultCode  = "00"
	DefaultDateTime    = "202507021200"
	DefaultPAN         = "603799******1234"
	DefaultBalance     = "50000"
	DefaultDescription = "Transaction Approved"

	// ResultApproved 交易成功的结果码
	ResultApproved = "00"
	// ResultFailed 模拟失败使用的结果码
	ResultFailed = "99"

	failedDescription = "Transaction Failed"

	// DefaultLatency 模拟的终端处理时长
	DefaultLatency = 500 * time.Millisecond

	stanMin = 100000
	stanMax = 999999
)

// Observer 支付完成后的回调
type Observer func(s *Session)

// Session 单笔交易会话
type Session struct {
	portName       string
	serialNumber   string
	terminalNumber string
	merchantNumber string
	paymentType    PaymentType
	amount         string

	stan        string
	rrn         string
	resultCode  string
	dateTime    string
	pan         string
	balance     string
	description string

	observer Observer
	channel  hardware.Channel
	state    State

	latency time.Duration
	rnd     *rand.Rand
	logger  *zap.Logger
}

// Option 会话选项
type Option func(*Session)

// WithLatency 设置模拟的终端处理时长
func WithLatency(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.latency = d
		}
	}
}

// WithRand 指定STAN的随机源
func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rnd = r
	}
}

// WithLogger 指定日志器
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithChannel 指定通信通道
func WithChannel(ch hardware.Channel) Option {
	return func(s *Session) {
		s.channel = ch
	}
}

// NewSession 创建新会话，结果字段带默认值
func NewSession(opts ...Option) *Session {
	s := &Session{
		stan:        DefaultSTAN,
		rrn:         DefaultRRN,
		resultCode:  DefaultResultCode,
		dateTime:    DefaultDateTime,
		pan:         DefaultPAN,
		balance:     DefaultBalance,
		description: DefaultDescription,
		latency:     DefaultLatency,
		state:       StateEmpty,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.channel == nil {
		s.channel = hardware.NewMockChannel()
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.logger == nil {
		s.logger = logger.WithModule("pcpos")
	}
	return s
}

func (s *Session) configured() {
	if s.state == StateEmpty {
		s.state = StateConfigured
	}
}

// SetPortName 设置串口名
func (s *Session) SetPortName(portName string) {
	s.portName = portName
	s.configured()
}

// SetSerialNumber 设置终端序列号
func (s *Session) SetSerialNumber(serialNumber string) {
	s.serialNumber = serialNumber
	s.configured()
}

// SetTerminalNumber 设置终端号
func (s *Session) SetTerminalNumber(terminalNumber string) {
	s.terminalNumber = terminalNumber
	s.configured()
}

// SetMerchantNumber 设置商户号
func (s *Session) SetMerchantNumber(merchantNumber string) {
	s.merchantNumber = merchantNumber
	s.configured()
}

// SetPaymentType 设置交易类型
func (s *Session) SetPaymentType(paymentType PaymentType) {
	s.paymentType = paymentType
	s.configured()
}

// SetAmount 设置金额（文本形式）
func (s *Session) SetAmount(amount string) {
	s.amount = amount
	s.configured()
}

// SetObserver 设置支付完成回调，nil 表示不通知
func (s *Session) SetObserver(observer Observer) {
	s.observer = observer
}

// SetChannel 替换通信通道
func (s *Session) SetChannel(ch hardware.Channel) {
	if ch == nil {
		ch = hardware.NewMockChannel()
	}
	s.channel = ch
}

// ValidateParameters 检查交易所需参数是否齐全
//
// 金额只检查非空，不做数值解析。
func (s *Session) ValidateParameters() bool {
	return notBlank(s.portName) &&
		notBlank(s.serialNumber) &&
		notBlank(s.terminalNumber) &&
		notBlank(s.merchantNumber) &&
		s.paymentType.Valid() &&
		notBlank(s.amount)
}

func notBlank(v string) bool {
	return strings.TrimSpace(v) != ""
}

// InitCommunication 打开与终端的通信通道
func (s *Session) InitCommunication() bool {
	s.logger.Info("初始化终端通信", zap.String("port", s.portName))

	if !s.channel.Open(s.portName) {
		s.logger.Error("终端通信初始化失败", zap.String("port", s.portName))
		return false
	}
	s.state = StateChannelOpen
	return true
}

// CloseCommunication 关闭通信通道，未打开时同样可以调用
func (s *Session) CloseCommunication() bool {
	s.logger.Info("关闭终端通信", zap.String("port", s.portName))

	if !s.channel.Close(s.portName) {
		s.logger.Error("终端通信关闭失败", zap.String("port", s.portName))
		return false
	}
	s.state = StateChannelClosed
	return true
}

// GenerateNewSTAN 生成新的6位STAN，范围 [100000, 999999]，不保证唯一
func (s *Session) GenerateNewSTAN() {
	s.stan = strconv.Itoa(stanMin + s.rnd.Intn(stanMax-stanMin+1))
}

// Payment 与终端完成一次支付交互
//
// 等待模拟处理时长后调用 observer（若已设置）并返回 nil。
// ctx 在等待结束前被取消时不调用 observer、不修改结果字段，
// 返回包装了 ctx.Err() 的 ErrCanceled 错误。
func (s *Session) Payment(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.state = StatePaymentPending
	s.logger.Debug("等待终端响应",
		zap.String("type", s.paymentType.String()),
		zap.String("amount", s.amount),
		zap.Duration("latency", s.latency))

	if err := ctx.Err(); err != nil {
		return s.interrupted(err)
	}

	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return s.interrupted(ctx.Err())
	case <-timer.C:
	}

	s.state = StateCompleted
	if s.observer != nil {
		s.observer(s)
	}
	return nil
}

func (s *Session) interrupted(cause error) error {
	s.state = StateInterrupted
	s.logger.Error("支付等待被中断", zap.Error(cause))
	return apperrors.Wrap(cause, apperrors.ErrCanceled, "payment interrupted")
}

// BuildTransactionSummary 生成交易摘要，未设置的字段输出为空
func (s *Session) BuildTransactionSummary() string {
	return fmt.Sprintf("[SUMMARY]\nAmount: %s\nType: %s\nMerchant: %s\nTerminal: %s",
		s.amount, s.paymentType, s.merchantNumber, s.terminalNumber)
}

// ExportTransactionDataCSV 导出单行CSV记录
//
// 字段顺序固定，不加表头，也不对字段中的逗号做转义。
func (s *Session) ExportTransactionDataCSV() string {
	return strings.Join([]string{
		s.serialNumber,
		s.terminalNumber,
		s.merchantNumber,
		s.paymentType.String(),
		s.amount,
		s.stan,
		s.rrn,
		s.resultCode,
		s.dateTime,
		s.pan,
		s.balance,
		s.description,
	}, ",")
}

// MaskedPAN 返回掩码后的卡号，不修改原值
func (s *Session) MaskedPAN() string {
	return MaskPAN(s.pan)
}

// SimulateFailure 将结果置为失败，用于演示失败报告
//
// STAN、RRN、交易时间保持不变。
func (s *Session) SimulateFailure() {
	s.resultCode = ResultFailed
	s.description = failedDescription
	s.balance = ""
	s.pan = ""
}

// Reset 清空交易参数和结果字段
//
// 串口名、通道和 observer 保留，会话可直接用于下一笔交易。
func (s *Session) Reset() {
	s.serialNumber = ""
	s.terminalNumber = ""
	s.merchantNumber = ""
	s.amount = ""
	s.paymentType = PaymentTypeUnset

	s.stan = ""
	s.rrn = ""
	s.resultCode = ""
	s.dateTime = ""
	s.pan = ""
	s.balance = ""
	s.description = ""

	s.state = StateEmpty
}

// Approved 结果码是否为成功
func (s *Session) Approved() bool {
	return s.resultCode == ResultApproved
}

// State 当前生命周期状态
func (s *Session) State() State { return s.state }

func (s *Session) PortName() string         { return s.portName }
func (s *Session) SerialNumber() string     { return s.serialNumber }
func (s *Session) TerminalNumber() string   { return s.terminalNumber }
func (s *Session) MerchantNumber() string   { return s.merchantNumber }
func (s *Session) PaymentType() PaymentType { return s.paymentType }
func (s *Session) Amount() string           { return s.amount }
func (s *Session) STAN() string             { return s.stan }
func (s *Session) RRN() string              { return s.rrn }
func (s *Session) ResultCode() string       { return s.resultCode }
func (s *Session) DateTime() string         { return s.dateTime }
func (s *Session) PAN() string              { return s.pan }
func (s *Session) Balance() string          { return s.balance }
func (s *Session) Description() string      { return s.description }
