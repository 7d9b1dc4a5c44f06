package hardware

import (
	"sync"
)

// Channel 与支付终端之间的通信通道
//
// Open/Close 以布尔值报告结果，调用方不做重试。
// 端口打开后由调用方独占，直到对应的 Close。
type Channel interface {
	Open(portName string) bool
	Close(portName string) bool
}

// MockChannel 模拟通道（无硬件时使用）
type MockChannel struct {
	mu        sync.Mutex
	FailOpen  bool
	FailClose bool

	opened     map[string]bool
	openCalls  []string
	closeCalls []string
}

// NewMockChannel 创建总是成功的模拟通道
func NewMockChannel() *MockChannel {
	return &MockChannel{opened: make(map[string]bool)}
}

// Open 模拟打开，已打开的端口返回失败
func (m *MockChannel) Open(portName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openCalls = append(m.openCalls, portName)
	if m.FailOpen || m.opened[portName] {
		return false
	}
	m.opened[portName] = true
	return true
}

// Close 模拟关闭，未打开的端口同样返回成功
func (m *MockChannel) Close(portName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls = append(m.closeCalls, portName)
	if m.FailClose {
		return false
	}
	delete(m.opened, portName)
	return true
}

// IsOpen 端口当前是否处于打开状态
func (m *MockChannel) IsOpen(portName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened[portName]
}

// OpenCalls 返回 Open 调用记录
func (m *MockChannel) OpenCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.openCalls...)
}

// CloseCalls 返回 Close 调用记录
func (m *MockChannel) CloseCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closeCalls...)
}
