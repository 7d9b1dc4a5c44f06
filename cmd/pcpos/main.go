package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/pcpos/internal/api"
	"github.com/wfunc/pcpos/internal/config"
	"github.com/wfunc/pcpos/internal/database"
	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/hardware"
	"github.com/wfunc/pcpos/internal/logger"
	"github.com/wfunc/pcpos/internal/pcpos"
	"github.com/wfunc/pcpos/internal/repository"
	"github.com/wfunc/pcpos/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// App 终端交易程序
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	channel  hardware.Channel
	payments *service.PaymentService
	server   *http.Server
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		port        = flag.String("port", "", "终端串口，覆盖 terminal.port")
		amount      = flag.String("amount", "", "交易金额，覆盖 terminal.amount")
		paymentType = flag.String("type", "", "交易类型 Sale/Refund，覆盖 terminal.payment_type")
		decline     = flag.Bool("decline", false, "模拟交易失败")
		serve       = flag.Bool("serve", false, "交易完成后继续提供查询服务")
		listPorts   = flag.Bool("list-ports", false, "列出本机可用串口")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *listPorts {
		for _, p := range hardware.DiscoverPorts("/dev") {
			fmt.Println(p)
		}
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Println(apperrors.Wrap(err, apperrors.ErrConfigLoad))
		os.Exit(1)
	}
	cfg := config.Get()

	// 命令行参数优先于配置文件
	if *port != "" {
		cfg.Terminal.Port = *port
	}
	if *amount != "" {
		cfg.Terminal.Amount = *amount
	}
	if *paymentType != "" {
		cfg.Terminal.PaymentType = *paymentType
	}
	if *decline {
		cfg.Terminal.SimulateDecline = true
	}
	if *serve {
		cfg.Server.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(apperrors.Wrap(err, apperrors.ErrConfigValidate))
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg)
	if err := app.Init(); err != nil {
		logger.Error("初始化失败", zap.Error(err))
		os.Exit(1)
	}
	defer app.Close()

	config.Watch(func(newCfg *config.Config) {
		logger.SetLevel(newCfg.Log.Level)
		logger.Info("配置已更新", zap.String("log_level", newCfg.Log.Level))
	})

	code := 0
	if err := app.RunPayment(ctx); err != nil {
		logger.Error("交易失败",
			zap.Error(err),
			zap.Int("code", int(apperrors.GetCode(err))),
			zap.Bool("retryable", apperrors.IsRetryable(err)))
		code = 1
	}

	if cfg.Server.Enabled {
		if err := app.Serve(ctx); err != nil {
			logger.Error("查询服务异常退出", zap.Error(err))
			code = 1
		}
	}

	if code != 0 {
		app.Close()
		logger.Cleanup()
		os.Exit(code)
	}
}

// NewApp 创建程序实例
func NewApp(cfg *config.Config) *App {
	return &App{
		cfg:    cfg,
		logger: logger.GetLogger(),
	}
}

// Init 初始化数据库、通道和支付服务
func (a *App) Init() error {
	opts := []service.PaymentOption{
		service.WithLatency(a.cfg.Terminal.Latency),
		service.WithLogger(logger.WithModule("service")),
	}

	if a.cfg.Database.Enabled {
		if err := a.initDatabase(); err != nil {
			return err
		}
		opts = append(opts, service.WithRepository(repository.NewTransactionRepository(a.db)))
	}

	if a.cfg.Serial.MockMode {
		a.logger.Info("使用模拟串口通道")
		a.channel = hardware.NewMockChannel()
	} else {
		a.channel = hardware.NewSerialChannel(
			hardware.SerialConfigFrom(a.cfg.Serial),
			hardware.WithChannelLogger(logger.WithModule("serial")),
		)
	}

	a.payments = service.NewPaymentService(a.channel, opts...)
	return nil
}

// initDatabase 初始化数据库
func (a *App) initDatabase() error {
	if err := database.Init(&a.cfg.Database); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if a.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	a.db = database.GetDB()
	return nil
}

// RunPayment 按配置执行一笔交易并打印报告
func (a *App) RunPayment(ctx context.Context) error {
	paymentType := pcpos.PaymentTypeUnset
	if name := a.cfg.Terminal.PaymentType; name != "" {
		parsed, err := pcpos.ParsePaymentType(name)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrInvalidParam)
		}
		paymentType = parsed
	}

	outcome, err := a.payments.Run(ctx, service.Request{
		Port:            a.cfg.Terminal.Port,
		SerialNumber:    a.cfg.Terminal.SerialNumber,
		TerminalNumber:  a.cfg.Terminal.TerminalNumber,
		MerchantNumber:  a.cfg.Terminal.MerchantNumber,
		PaymentType:     paymentType,
		Amount:          a.cfg.Terminal.Amount,
		SimulateDecline: a.cfg.Terminal.SimulateDecline,
	})
	if err != nil {
		return err
	}

	fmt.Println(outcome.Report)
	return nil
}

// Serve 启动查询服务，ctx 结束后优雅关闭
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Server.Mode != "" {
		gin.SetMode(a.cfg.Server.Mode)
	}
	router := api.NewRouter(a.db, a.payments, logger.WithModule("api"))

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("查询服务启动", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("收到退出信号，正在关闭查询服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTimeout, "关闭查询服务超时")
	}
	return nil
}

// Close 释放数据库连接
func (a *App) Close() {
	if a.db == nil {
		return
	}
	if err := database.Close(); err != nil {
		a.logger.Error("关闭数据库失败", zap.Error(err))
	}
	a.db = nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("pcpos 支付终端驱动\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
}
