package pcpos

// State 会话生命周期状态
type State int

const (
	StateEmpty State = iota
	StateConfigured
	StateChannelOpen
	StatePaymentPending
	StateCompleted
	StateInterrupted
	StateChannelClosed
)

var stateNames = map[State]string{
	StateEmpty:          "empty",
	StateConfigured:     "configured",
	StateChannelOpen:    "channel_open",
	StatePaymentPending: "payment_pending",
	StateCompleted:      "completed",
	StateInterrupted:    "interrupted",
	StateChannelClosed:  "channel_closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
