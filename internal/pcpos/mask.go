package pcpos

const (
	panKeepHead = 6
	panKeepTail = 4
	panMaskChar = '*'
)

// MaskPAN 对卡号做掩码：长度不足10时原样返回，否则每个前面紧邻
// 至少6位数字、后面紧邻至少4位数字的数字替换为 '*'。
// 对纯数字卡号即保留前6位和后4位。
func MaskPAN(pan string) string {
	if len(pan) < panKeepHead+panKeepTail {
		return pan
	}

	src := []byte(pan)
	out := []byte(pan)
	for i := panKeepHead; i < len(src)-panKeepTail; i++ {
		if isDigit(src[i]) &&
			allDigits(src[i-panKeepHead:i]) &&
			allDigits(src[i+1:i+1+panKeepTail]) {
			out[i] = panMaskChar
		}
	}
	return string(out)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if !isDigit(c) {
			return false
		}
	}
	return true
}
