package pcpos

import "fmt"

// PaymentType 交易类型，零值表示未设置
type PaymentType int

const (
	PaymentTypeUnset PaymentType = iota
	Sale
	Refund
)

// String 返回交易类型名称，仅用于展示和导出
func (p PaymentType) String() string {
	switch p {
	case Sale:
		return "Sale"
	case Refund:
		return "Refund"
	default:
		return ""
	}
}

// Valid 是否为已定义的交易类型
func (p PaymentType) Valid() bool {
	return p == Sale || p == Refund
}

// ParsePaymentType 解析配置中的交易类型名称
func ParsePaymentType(name string) (PaymentType, error) {
	switch name {
	case "Sale":
		return Sale, nil
	case "Refund":
		return Refund, nil
	default:
		return PaymentTypeUnset, fmt.Errorf("unknown payment type %q", name)
	}
}
