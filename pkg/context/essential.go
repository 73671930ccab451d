package context

// EssentialExtractor 从规范化负载中投影出提供者特定的要点字段。
type EssentialExtractor func(payload map[string]interface{}) map[string]interface{}

// EssentialProjection 要点投影策略。
// 按提供者名称查找要点字段抽取器，将负载投影到一组
// 已知高价值字段；未知提供者投影为最小占位负载。
type EssentialProjection struct {
	extractors map[string]EssentialExtractor
}

// ProjectionOption 配置 EssentialProjection。
type ProjectionOption func(*EssentialProjection)

// WithExtractor 注册或覆盖一个提供者的要点字段抽取器。
func WithExtractor(provider string, fn EssentialExtractor) ProjectionOption {
	return func(p *EssentialProjection) {
		p.extractors[provider] = fn
	}
}

// NewEssentialProjection 创建带内置抽取器的要点投影策略。
func NewEssentialProjection(opts ...ProjectionOption) *EssentialProjection {
	p := &EssentialProjection{
		extractors: map[string]EssentialExtractor{
			ProviderViewport:    extractViewportEssentials,
			ProviderFormState:   extractFormStateEssentials,
			ProviderNavigation:  extractNavigationEssentials,
			ProviderPerformance: extractPerformanceEssentials,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name 返回策略名称。
func (p *EssentialProjection) Name() string { return "essential-projection" }

// Apply 返回投影到要点字段后的负载。
func (p *EssentialProjection) Apply(provider string, payload interface{}) interface{} {
	normalized, ok := normalizePayload(payload).(map[string]interface{})
	if !ok {
		return minimalPlaceholder(provider)
	}

	extractor, ok := p.extractors[provider]
	if !ok {
		return minimalPlaceholder(provider)
	}

	projected := extractor(normalized)
	if len(projected) == 0 {
		return minimalPlaceholder(provider)
	}
	return projected
}

// minimalPlaceholder 未知提供者的最小占位负载。
func minimalPlaceholder(provider string) map[string]interface{} {
	return map[string]interface{}{
		"essential_only": true,
		"provider":       provider,
	}
}

// copyFields 从负载中拷贝存在的指定字段。
func copyFields(payload map[string]interface{}, fields ...string) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		if v, ok := payload[field]; ok && v != nil {
			result[field] = v
		}
	}
	return result
}

func extractViewportEssentials(payload map[string]interface{}) map[string]interface{} {
	return copyFields(payload, "width", "height", "orientation", "scroll_percent")
}

func extractFormStateEssentials(payload map[string]interface{}) map[string]interface{} {
	return copyFields(payload, "validation_errors", "focused_field", "completion_ratio")
}

func extractNavigationEssentials(payload map[string]interface{}) map[string]interface{} {
	return copyFields(payload, "url", "title")
}

func extractPerformanceEssentials(payload map[string]interface{}) map[string]interface{} {
	return copyFields(payload, "load_time_ms", "memory_used_bytes")
}

// 编译时接口检查
var _ Strategy = (*EssentialProjection)(nil)
