package logger

import (
	"time"

	"go.uber.org/zap"
)

// LogRequest 记录HTTP请求
func LogRequest(method, path string, status int, latency time.Duration, clientIP string) {
	GetModuleLogger("api").Info("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	)
}

// LogTransactionEvent 记录交易生命周期事件
func LogTransactionEvent(event, sessionID string, fields ...zap.Field) {
	GetModuleLogger("pcpos").Info("transaction_event",
		append([]zap.Field{zap.String("event", event), zap.String("session_id", sessionID)}, fields...)...)
}

// LogChannelEvent 记录串口通道打开关闭，失败记为 error
func LogChannelEvent(action, port string, success bool) {
	l := GetModuleLogger("serial")
	fields := []zap.Field{zap.String("action", action), zap.String("port", port)}
	if !success {
		l.Error("channel_event_failed", fields...)
		return
	}
	l.Info("channel_event", fields...)
}

// LogDatabaseOperation 记录数据库操作耗时，成功的操作只在 debug 级别输出
func LogDatabaseOperation(operation, table string, duration time.Duration, err error) {
	l := GetModuleLogger("database")
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("table", table),
		zap.Duration("duration", duration),
	}
	if err != nil {
		l.Error("database_operation_failed", append(fields, zap.Error(err))...)
		return
	}
	l.Debug("database_operation", fields...)
}
