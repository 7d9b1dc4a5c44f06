package hardware

import (
	"fmt"
	"path/filepath"
)

// DefaultPortPatterns 常见的终端串口设备名前缀
var DefaultPortPatterns = []string{"ttyUSB", "ttyACM", "ttyS"}

// maxPortIndex 每种前缀探测的设备编号上限
const maxPortIndex = 10

// DiscoverPorts 在 dir 下按前缀和编号查找存在的串口设备
//
// 结果按前缀顺序和编号排列，patterns 为空时使用 DefaultPortPatterns。
func DiscoverPorts(dir string, patterns ...string) []string {
	if len(patterns) == 0 {
		patterns = DefaultPortPatterns
	}

	var found []string
	for _, pattern := range patterns {
		for i := 0; i < maxPortIndex; i++ {
			device := filepath.Join(dir, fmt.Sprintf("%s%d", pattern, i))
			if SerialPortExists(device) {
				found = append(found, device)
			}
		}
	}
	return found
}
