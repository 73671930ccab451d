package context

// GatherOptions 一次采集调用的选项。
// 零值字段使用管理器配置的默认值。
type GatherOptions struct {
	// CacheKey 指定后启用缓存快路径和结果写回。
	// 为空时本次调用完全绕过缓存。
	CacheKey string

	// TokenBudget 组装结果的 Token 预算。
	// 为 0 时使用管理器配置的默认预算。
	TokenBudget int

	// MinRelevance 最低相关度阈值（0.0-1.0）。
	// 分数低于阈值的信号块被丢弃。nil 时使用管理器
	// 配置的默认阈值，显式设为 Float64(0) 可关闭过滤。
	MinRelevance *float64

	// ProviderIDs 限定参与采集的提供者名称集合。
	// 为空时所有已启用的提供者参与。
	ProviderIDs []string

	// Trigger 触发来源。为空时默认 TriggerUserPrompt。
	Trigger Trigger

	// ForceRefresh 为 true 时跳过缓存快路径，但仍写回缓存。
	ForceRefresh bool
}

// withDefaults 填充默认值后返回选项副本。
func (o GatherOptions) withDefaults(defaultBudget int, defaultMinRelevance float64) GatherOptions {
	if o.TokenBudget <= 0 {
		o.TokenBudget = defaultBudget
	}
	if o.MinRelevance == nil {
		o.MinRelevance = &defaultMinRelevance
	}
	if !o.Trigger.IsValid() {
		o.Trigger = TriggerUserPrompt
	}
	return o
}

// Float64 返回浮点指针，用于显式设置 GatherOptions 的可选阈值。
func Float64(v float64) *float64 { return &v }

// wantsProvider 检查提供者名称是否在限定集合内。
func (o GatherOptions) wantsProvider(name string) bool {
	if len(o.ProviderIDs) == 0 {
		return true
	}
	for _, id := range o.ProviderIDs {
		if id == name {
			return true
		}
	}
	return false
}
