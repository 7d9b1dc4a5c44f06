package hardware

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/pcpos/internal/config"
	"github.com/wfunc/pcpos/internal/logger"
	"go.uber.org/zap"
)

// SerialConfig 串口配置
type SerialConfig struct {
	Port        string
	BaudRate    int
	DataBits    byte
	StopBits    byte
	Parity      string
	ReadTimeout time.Duration
}

// SerialConfigFrom 由全局配置生成串口配置，端口在打开时指定
func SerialConfigFrom(c config.SerialConfig) *SerialConfig {
	return &SerialConfig{
		BaudRate:    c.BaudRate,
		DataBits:    byte(c.DataBits),
		StopBits:    byte(c.StopBits),
		Parity:      c.Parity,
		ReadTimeout: c.ReadTimeout,
	}
}

// SerialPortExists 检查串口设备是否存在
func SerialPortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SerialChannel 基于 tarm/serial 的终端通道
//
// 只负责端口的打开与关闭，不读写任何协议字节。
type SerialChannel struct {
	config *SerialConfig
	opener PortOpener
	logger *zap.Logger

	mu    sync.Mutex
	ports map[string]SerialPort
}

// SerialChannelOption 串口通道选项
type SerialChannelOption func(*SerialChannel)

// WithOpener 替换串口打开函数
func WithOpener(opener PortOpener) SerialChannelOption {
	return func(s *SerialChannel) {
		s.opener = opener
	}
}

// WithChannelLogger 指定日志器
func WithChannelLogger(l *zap.Logger) SerialChannelOption {
	return func(s *SerialChannel) {
		s.logger = l
	}
}

// NewSerialChannel 创建串口通道
func NewSerialChannel(cfg *SerialConfig, opts ...SerialChannelOption) *SerialChannel {
	if cfg == nil {
		cfg = &SerialConfig{}
	}
	s := &SerialChannel{
		config: cfg,
		opener: openTarmPort,
		logger: logger.WithModule("serial"),
		ports:  make(map[string]SerialPort),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open 打开指定串口
//
// 端口在 Close 之前由本次打开独占，重复打开返回失败。
func (s *SerialChannel) Open(portName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ports[portName]; ok {
		s.logger.Warn("串口已被占用", zap.String("port", portName))
		logger.LogChannelEvent("open", portName, false)
		return false
	}

	cfg := *s.config
	cfg.Port = portName

	port, err := s.opener(&cfg)
	if err != nil {
		s.logger.Error("打开串口失败",
			zap.String("port", portName),
			zap.Error(err))
		logger.LogChannelEvent("open", portName, false)
		return false
	}

	s.ports[portName] = port
	s.logger.Info("串口连接成功",
		zap.String("port", portName),
		zap.Int("baud_rate", cfg.BaudRate))
	logger.LogChannelEvent("open", portName, true)
	return true
}

// Close 关闭指定串口，未打开过的端口视为成功
func (s *SerialChannel) Close(portName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	port, ok := s.ports[portName]
	if !ok {
		return true
	}
	delete(s.ports, portName)

	if err := port.Close(); err != nil {
		s.logger.Error("关闭串口失败",
			zap.String("port", portName),
			zap.Error(err))
		logger.LogChannelEvent("close", portName, false)
		return false
	}

	s.logger.Info("串口已断开", zap.String("port", portName))
	logger.LogChannelEvent("close", portName, true)
	return true
}

// IsOpen 端口是否已打开
func (s *SerialChannel) IsOpen(portName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ports[portName]
	return ok
}

// openTarmPort 使用 tarm/serial 打开真实串口
func openTarmPort(cfg *SerialConfig) (SerialPort, error) {
	port, err := serial.OpenPort(tarmConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}
	return port, nil
}

// tarmConfig 转换为 tarm/serial 配置
func tarmConfig(cfg *SerialConfig) *serial.Config {
	// 解析校验位
	parity := serial.ParityNone
	switch cfg.Parity {
	case "O", "odd":
		parity = serial.ParityOdd
	case "E", "even":
		parity = serial.ParityEven
	}

	baud := cfg.BaudRate
	if baud == 0 {
		baud = 9600
	}

	return &serial.Config{
		Name:        cfg.Port,
		Baud:        baud,
		Size:        cfg.DataBits,
		Parity:      parity,
		StopBits:    serial.StopBits(cfg.StopBits),
		ReadTimeout: cfg.ReadTimeout,
	}
}
