package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/pcpos/internal/config"
	"github.com/wfunc/pcpos/internal/database"
	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/hardware"
	"github.com/wfunc/pcpos/internal/models"
	"github.com/wfunc/pcpos/internal/pcpos"
	"github.com/wfunc/pcpos/internal/repository"
	"go.uber.org/zap"
)

func validRequest() Request {
	return Request{
		Port:           "COM3",
		SerialNumber:   "003000009592",
		TerminalNumber: "96090001",
		MerchantNumber: "017379960902001",
		PaymentType:    pcpos.Sale,
		Amount:         "1000",
	}
}

// PaymentServiceTestSuite 支付服务测试套件
type PaymentServiceTestSuite struct {
	suite.Suite
	channel *hardware.MockChannel
	repo    repository.TransactionRepository
	service *PaymentService
	ctx     context.Context
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	db, err := database.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), database.Migrate(db))
	suite.T().Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	suite.channel = hardware.NewMockChannel()
	suite.repo = repository.NewTransactionRepository(db)
	suite.service = NewPaymentService(suite.channel,
		WithLatency(0),
		WithRepository(suite.repo),
		WithLogger(zap.NewNop()))
	suite.ctx = context.Background()
}

func (suite *PaymentServiceTestSuite) TestRun_Approved() {
	outcome, err := suite.service.Run(suite.ctx, validRequest())
	require.NoError(suite.T(), err)

	assert.True(suite.T(), outcome.Approved)
	assert.Equal(suite.T(), models.TransactionStatusApproved, outcome.Status)
	assert.Len(suite.T(), outcome.SessionID, 36)
	assert.Len(suite.T(), outcome.STAN, 6)
	assert.True(suite.T(), strings.HasPrefix(outcome.Report, "[RESULT]\n"))
	assert.Equal(suite.T(), strings.Join([]string{
		"003000009592", "96090001", "017379960902001", "Sale", "1000",
		outcome.STAN, "654321", "00", "202507021200", "603799******1234",
		"50000", "Transaction Approved",
	}, ","), outcome.CSV)

	// 打开和关闭各一次
	assert.Equal(suite.T(), []string{"COM3"}, suite.channel.OpenCalls())
	assert.Equal(suite.T(), []string{"COM3"}, suite.channel.CloseCalls())
	assert.False(suite.T(), suite.channel.IsOpen("COM3"))

	record, err := suite.repo.FindBySessionID(suite.ctx, outcome.SessionID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), outcome.STAN, record.STAN)
	assert.Equal(suite.T(), "603799******1234", record.MaskedPAN)
	assert.Equal(suite.T(), models.TransactionStatusApproved, record.Status)
	assert.Equal(suite.T(), outcome.CSV, record.CSV)
}

func (suite *PaymentServiceTestSuite) TestRun_SimulateDecline() {
	req := validRequest()
	req.SimulateDecline = true

	outcome, err := suite.service.Run(suite.ctx, req)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), outcome.Approved)
	assert.Equal(suite.T(), models.TransactionStatusDeclined, outcome.Status)
	assert.Contains(suite.T(), outcome.Report, "Transaction Failed")

	record, err := suite.repo.FindBySessionID(suite.ctx, outcome.SessionID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), pcpos.ResultFailed, record.ResultCode)
	assert.Empty(suite.T(), record.MaskedPAN)
}

func (suite *PaymentServiceTestSuite) TestRun_InvalidParameters() {
	req := validRequest()
	req.MerchantNumber = "  "

	outcome, err := suite.service.Run(suite.ctx, req)
	assert.Nil(suite.T(), outcome)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInvalidParam))
	assert.Empty(suite.T(), suite.channel.OpenCalls())
	assert.Empty(suite.T(), suite.channel.CloseCalls())
}

func (suite *PaymentServiceTestSuite) TestRun_UnsetPaymentType() {
	req := validRequest()
	req.PaymentType = pcpos.PaymentTypeUnset

	_, err := suite.service.Run(suite.ctx, req)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInvalidParam))
	assert.Empty(suite.T(), suite.channel.OpenCalls())
}

func (suite *PaymentServiceTestSuite) TestRun_OpenFailure() {
	suite.channel.FailOpen = true

	outcome, err := suite.service.Run(suite.ctx, validRequest())
	assert.Nil(suite.T(), outcome)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrSerialPortOpen))
	assert.Equal(suite.T(), []string{"COM3"}, suite.channel.OpenCalls())
	assert.Empty(suite.T(), suite.channel.CloseCalls())

	stats, err := suite.repo.Stats(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), stats.Total)
}

// 关闭失败不影响交易结果
func (suite *PaymentServiceTestSuite) TestRun_CloseFailure() {
	suite.channel.FailClose = true

	outcome, err := suite.service.Run(suite.ctx, validRequest())
	require.NoError(suite.T(), err)
	assert.True(suite.T(), outcome.Approved)
	assert.Len(suite.T(), suite.channel.CloseCalls(), 1)
}

func (suite *PaymentServiceTestSuite) TestRun_CanceledBeforePayment() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	outcome, err := suite.service.Run(ctx, validRequest())
	require.Error(suite.T(), err)
	assert.True(suite.T(), errors.Is(err, context.Canceled))
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrCanceled))
	assert.Equal(suite.T(), models.TransactionStatusInterrupted, outcome.Status)
	assert.Empty(suite.T(), outcome.Report)

	// 通道仍然被关闭
	assert.Equal(suite.T(), []string{"COM3"}, suite.channel.CloseCalls())

	record, err := suite.repo.FindBySessionID(suite.ctx, outcome.SessionID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TransactionStatusInterrupted, record.Status)
	assert.NotEmpty(suite.T(), record.ErrorMsg)
}

func (suite *PaymentServiceTestSuite) TestRun_CanceledDuringPayment() {
	svc := NewPaymentService(suite.channel,
		WithLatency(time.Hour),
		WithRepository(suite.repo),
		WithLogger(zap.NewNop()))

	ctx, cancel := context.WithTimeout(suite.ctx, 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	outcome, err := svc.Run(ctx, validRequest())
	assert.Less(suite.T(), time.Since(start), 5*time.Second)
	assert.True(suite.T(), errors.Is(err, context.DeadlineExceeded))
	assert.Equal(suite.T(), models.TransactionStatusInterrupted, outcome.Status)
	assert.False(suite.T(), suite.channel.IsOpen("COM3"))
	assert.Len(suite.T(), suite.channel.CloseCalls(), 1)
}

func (suite *PaymentServiceTestSuite) TestRun_DistinctSessions() {
	first, err := suite.service.Run(suite.ctx, validRequest())
	require.NoError(suite.T(), err)
	second, err := suite.service.Run(suite.ctx, validRequest())
	require.NoError(suite.T(), err)

	assert.NotEqual(suite.T(), first.SessionID, second.SessionID)

	stats, err := suite.repo.Stats(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), stats.Approved)
}

// 同一端口上的并发尝试不能共享通道：后到者打开失败，且不会关闭先到者的端口
func (suite *PaymentServiceTestSuite) TestRun_ConcurrentAttemptsOnSamePort() {
	slow := NewPaymentService(suite.channel,
		WithLatency(200*time.Millisecond),
		WithRepository(suite.repo),
		WithLogger(zap.NewNop()))
	fast := NewPaymentService(suite.channel,
		WithLatency(10*time.Millisecond),
		WithRepository(suite.repo),
		WithLogger(zap.NewNop()))

	type result struct {
		outcome *Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := slow.Run(suite.ctx, validRequest())
		done <- result{outcome, err}
	}()

	require.Eventually(suite.T(), func() bool {
		return suite.channel.IsOpen("COM3")
	}, time.Second, time.Millisecond)

	outcome, err := fast.Run(suite.ctx, validRequest())
	assert.Nil(suite.T(), outcome)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrSerialPortOpen))
	// 先到者仍在等待支付，端口保持打开
	assert.True(suite.T(), suite.channel.IsOpen("COM3"))

	res := <-done
	require.NoError(suite.T(), res.err)
	assert.True(suite.T(), res.outcome.Approved)
	assert.False(suite.T(), suite.channel.IsOpen("COM3"))
	assert.Equal(suite.T(), []string{"COM3"}, suite.channel.CloseCalls())

	stats, err := suite.repo.Stats(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), stats.Approved)
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func TestRun_WithoutRepository(t *testing.T) {
	svc := NewPaymentService(nil, WithLatency(0), WithLogger(zap.NewNop()))

	outcome, err := svc.Run(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, outcome.Approved)
	assert.NotEmpty(t, outcome.Report)
}
