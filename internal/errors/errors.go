package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码按模块分段
const (
	// 通用 (1000-1999)
	ErrUnknown      ErrorCode = 1000
	ErrInvalidParam ErrorCode = 1001
	ErrNotFound     ErrorCode = 1002
	ErrTimeout      ErrorCode = 1005
	ErrCanceled     ErrorCode = 1006

	// 终端通道 (3000-3999)
	ErrSerialPortOpen  ErrorCode = 3000
	ErrSerialPortClose ErrorCode = 3001

	// 数据库 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002

	// 配置 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigValidate ErrorCode = 6002
)

type codeInfo struct {
	message   string
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrUnknown:      {"未知错误", http.StatusInternalServerError, false},
	ErrInvalidParam: {"无效的参数", http.StatusBadRequest, false},
	ErrNotFound:     {"资源未找到", http.StatusNotFound, false},
	ErrTimeout:      {"操作超时", http.StatusRequestTimeout, true},
	ErrCanceled:     {"操作已取消", http.StatusRequestTimeout, true},

	ErrSerialPortOpen:  {"串口打开失败", http.StatusBadGateway, true},
	ErrSerialPortClose: {"串口关闭失败", http.StatusBadGateway, false},

	ErrDatabaseConnect: {"数据库连接失败", http.StatusServiceUnavailable, true},
	ErrDatabaseQuery:   {"数据库查询失败", http.StatusServiceUnavailable, false},
	ErrDatabaseInsert:  {"数据库插入失败", http.StatusServiceUnavailable, false},

	ErrConfigLoad:     {"配置加载失败", http.StatusInternalServerError, false},
	ErrConfigValidate: {"配置验证失败", http.StatusInternalServerError, false},
}

func lookup(code ErrorCode) codeInfo {
	if info, ok := codes[code]; ok {
		return info
	}
	return codes[ErrUnknown]
}

// AppError 应用错误
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"stack,omitempty"`
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (e *AppError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
}

// Unwrap 返回原因错误，errors.Is 可以穿透到 context.Canceled 等哨兵错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 设置详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 设置原因错误，详细信息为空时取原因的文本
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// HTTPStatus 错误码对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	return lookup(e.Code).status
}

func newError(code ErrorCode, details []string) *AppError {
	e := &AppError{
		Code:    code,
		Message: lookup(code).message,
		Details: strings.Join(details, "; "),
	}
	e.Stack = callers(3)
	return e
}

// New 创建应用错误
func New(code ErrorCode, details ...string) *AppError {
	return newError(code, details)
}

// Newf 创建格式化详细信息的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return newError(code, []string{fmt.Sprintf(format, args...)})
}

// Wrap 包装错误
//
// err 链上已有 AppError 时沿用它的错误码，只追加详细信息。
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var inner *AppError
	if stderrors.As(err, &inner) {
		code = inner.Code
		if inner.Details != "" {
			details = append(details, inner.Details)
		}
	} else if len(details) == 0 {
		details = []string{err.Error()}
	}

	e := newError(code, details)
	e.Cause = err
	return e
}

// Wrapf 包装错误并格式化详细信息
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is 错误链上是否有指定错误码的 AppError
func Is(err error, code ErrorCode) bool {
	var e *AppError
	return stderrors.As(err, &e) && e.Code == code
}

// GetCode 获取错误码，非 AppError 返回 ErrUnknown，nil 返回 0
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var e *AppError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// IsRetryable 相同参数重试是否可能成功
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return lookup(GetCode(err)).retryable
}

// callers 采集调用栈，跳过 runtime 和本包的帧，最多10帧
func callers(skip int) []StackFrame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []StackFrame
	for len(stack) < 10 {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") &&
			!strings.Contains(frame.Function, "/internal/errors.") {
			stack = append(stack, StackFrame{Function: frame.Function, File: frame.File, Line: frame.Line})
		}
		if !more {
			break
		}
	}
	return stack
}

// GetStack 格式化调用栈
func (e *AppError) GetStack() string {
	var b strings.Builder
	for i, f := range e.Stack {
		fmt.Fprintf(&b, "%d. %s\n   %s:%d\n", i+1, f.Function, f.File, f.Line)
	}
	return b.String()
}

// ErrorResponse API错误响应
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
