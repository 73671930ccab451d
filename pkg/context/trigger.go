package context

// Trigger 表示一次采集的触发来源。
type Trigger string

const (
	// TriggerUserAction 用户直接操作触发（最高紧迫度）。
	TriggerUserAction Trigger = "user-action"

	// TriggerUserPrompt 用户提问触发（默认）。
	TriggerUserPrompt Trigger = "user-prompt"

	// TriggerProactive 助手主动发起（最低紧迫度）。
	TriggerProactive Trigger = "proactive"
)

// IsValid 检查触发来源是否有效。
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerUserAction, TriggerUserPrompt, TriggerProactive:
		return true
	default:
		return false
	}
}

// Weight 返回触发来源的紧迫度乘数。
// 用户直接操作权重最高，主动采集权重最低。
func (t Trigger) Weight() float64 {
	switch t {
	case TriggerUserAction:
		return 1.0
	case TriggerProactive:
		return 0.7
	default:
		return 0.9
	}
}
