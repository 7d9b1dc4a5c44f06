// Package report 渲染交易完成后的控制台报告
package report

import (
	"fmt"
	"strings"

	"github.com/wfunc/pcpos/internal/pcpos"
)

const rowFormat = "%-15s%s\n"

// Result 生成 [RESULT] 报告块，卡号以掩码形式输出，末尾附CSV行
func Result(s *pcpos.Session) string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("[RESULT]\n")
	rows := []struct {
		label string
		value string
	}{
		{"PAYMENT_TYPE", s.PaymentType().String()},
		{"SERIAL_NO", s.SerialNumber()},
		{"MERCHANT_NO", s.MerchantNumber()},
		{"TERMINAL_NO", s.TerminalNumber()},
		{"STAN", s.STAN()},
		{"RRN", s.RRN()},
		{"RES_CODE", s.ResultCode()},
		{"AMOUNT", s.Amount()},
		{"DATETIME", s.DateTime()},
		{"PAN", s.MaskedPAN()},
		{"BALANCE", s.Balance()},
		{"DESCRIPTION", s.Description()},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, rowFormat, row.label, row.value)
	}
	fmt.Fprintf(&b, "[CSV] %s", s.ExportTransactionDataCSV())
	return b.String()
}
