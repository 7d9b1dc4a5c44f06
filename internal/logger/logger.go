// Package logger 封装 zap 全局日志器，支持文件轮转和按模块设置级别
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wfunc/pcpos/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	logger  *zap.Logger
	modules = map[string]*zap.Logger{}

	// level 全局级别，配置热更新时直接修改
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	fallbackOnce sync.Once
	fallback     *zap.Logger
)

// outputs 日志输出目标
type outputs struct {
	writers []zapcore.WriteSyncer
	errors  zapcore.WriteSyncer // 只接收 error 及以上
}

// cores 以给定级别为每个输出构建 core
func (o outputs) cores(enc zapcore.Encoder, enabler zapcore.LevelEnabler) []zapcore.Core {
	cores := make([]zapcore.Core, 0, len(o.writers)+1)
	for _, w := range o.writers {
		cores = append(cores, zapcore.NewCore(enc, w, enabler))
	}
	if o.errors != nil {
		cores = append(cores, zapcore.NewCore(enc, o.errors, zapcore.ErrorLevel))
	}
	return cores
}

func rotating(dir, name string, f config.LogFileConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    f.MaxSize,
		MaxAge:     f.MaxAge,
		MaxBackups: f.MaxBackups,
		Compress:   f.Compress,
	})
}

func openOutputs(cfg *config.LogConfig) (outputs, error) {
	var o outputs
	switch cfg.Output {
	case "", "stdout", "both":
		o.writers = append(o.writers, zapcore.Lock(os.Stdout))
	}
	switch cfg.Output {
	case "file", "both":
		if err := os.MkdirAll(cfg.File.Path, 0755); err != nil {
			return o, fmt.Errorf("create log dir: %w", err)
		}
		o.writers = append(o.writers, rotating(cfg.File.Path, cfg.File.Filename, cfg.File))
		o.errors = rotating(cfg.File.Path, "error.log", cfg.File)
	}
	return o, nil
}

// Init 按配置构建全局日志器，可重复调用
func Init(cfg *config.LogConfig) error {
	out, err := openOutputs(cfg)
	if err != nil {
		return err
	}
	enc := newEncoder(cfg.Format)

	level.SetLevel(parseLevel(cfg.Level))
	l := zap.New(zapcore.NewTee(out.cores(enc, level)...),
		zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	named := make(map[string]*zap.Logger, len(cfg.Modules))
	for module, lv := range cfg.Modules {
		named[module] = zap.New(zapcore.NewTee(out.cores(enc, parseLevel(lv))...),
			zap.AddCaller()).Named(module)
	}

	mu.Lock()
	logger = l
	modules = named
	mu.Unlock()
	return nil
}

// SetLevel 修改全局日志级别，单独配置级别的模块不受影响
func SetLevel(name string) {
	level.SetLevel(parseLevel(name))
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func parseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogger 替换全局日志器并清空模块日志器
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	modules = map[string]*zap.Logger{}
}

// GetLogger 获取全局日志器，未初始化时返回同一个 zap 生产配置日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	fallbackOnce.Do(func() {
		var err error
		if fallback, err = zap.NewProduction(); err != nil {
			fallback = zap.NewNop()
		}
	})
	return fallback
}

// GetModuleLogger 获取模块日志器
func GetModuleLogger(module string) *zap.Logger {
	mu.RLock()
	l, ok := modules[module]
	mu.RUnlock()
	if ok {
		return l
	}
	return GetLogger().Named(module)
}

// WithModule 同 GetModuleLogger
func WithModule(module string) *zap.Logger {
	return GetModuleLogger(module)
}

// Sync 刷新缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

// Cleanup 退出前刷新日志
func Cleanup() {
	// stdout 在部分平台上 Sync 会返回 EINVAL，忽略即可
	_ = Sync()
}

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }
