package hardware

import "io"

// SerialPort 串口接口（*serial.Port 满足该接口，测试中可替换）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// PortOpener 按配置打开串口
type PortOpener func(cfg *SerialConfig) (SerialPort, error)
