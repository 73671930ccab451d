package context

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Strategy 定义对单个信号块负载进行压缩的接口。
// 策略只变换负载本身，提供者名称和时间戳始终原样保留。
type Strategy interface {
	// Name 返回策略名称。
	Name() string

	// Apply 返回变换后的负载。provider 是信号块的提供者名称，
	// 供需要区分负载形态的策略使用。
	Apply(provider string, payload interface{}) interface{}
}

// normalizePayload 将任意负载转换为通用的 map/slice/标量树。
// 类型化结构体经 JSON 往返后变为 map[string]interface{}。
func normalizePayload(payload interface{}) interface{} {
	switch payload.(type) {
	case nil, string, bool, float64, map[string]interface{}, []interface{}:
		return payload
	}

	data, err := sonic.Marshal(payload)
	if err != nil {
		return payload
	}
	var normalized interface{}
	if err := sonic.Unmarshal(data, &normalized); err != nil {
		return payload
	}
	return normalized
}

// RedundancyRemoval 剔除负载中的冗余内容：
// 递归删除 null、空字符串、空数组和空对象字段，
// 折叠序列中连续的重复元素，去除字符串首尾空白。
// 永不删除 false 和 0。
type RedundancyRemoval struct{}

// NewRedundancyRemoval 创建冗余剔除策略。
func NewRedundancyRemoval() *RedundancyRemoval {
	return &RedundancyRemoval{}
}

// Name 返回策略名称。
func (s *RedundancyRemoval) Name() string { return "redundancy-removal" }

// Apply 返回剔除冗余后的负载。
func (s *RedundancyRemoval) Apply(_ string, payload interface{}) interface{} {
	return pruneValue(normalizePayload(payload))
}

// pruneValue 递归剔除冗余内容，无内容时返回 nil。
func pruneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		return trimmed

	case map[string]interface{}:
		pruned := make(map[string]interface{}, len(v))
		for key, item := range v {
			if cleaned := pruneValue(item); cleaned != nil {
				pruned[key] = cleaned
			}
		}
		if len(pruned) == 0 {
			return nil
		}
		return pruned

	case []interface{}:
		pruned := make([]interface{}, 0, len(v))
		var prev interface{}
		for i, item := range v {
			cleaned := pruneValue(item)
			if cleaned == nil {
				continue
			}
			// 折叠连续的重复元素
			if i > 0 && equalValues(cleaned, prev) {
				continue
			}
			pruned = append(pruned, cleaned)
			prev = cleaned
		}
		if len(pruned) == 0 {
			return nil
		}
		return pruned

	default:
		// false 和 0 原样保留
		return value
	}
}

// equalValues 比较两个标量或序列化后的复合值是否相等。
func equalValues(a, b interface{}) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	}

	da, erra := sonic.Marshal(a)
	db, errb := sonic.Marshal(b)
	return erra == nil && errb == nil && string(da) == string(db)
}

// VerbositySummarizer 截断过长的字符串、序列和大对象。
// 被识别为诊断性/要点字段（错误消息、校验消息等）的内容
// 完全豁免截断。
type VerbositySummarizer struct {
	// MaxStringLen 字符串截断阈值。默认 200。
	MaxStringLen int

	// MaxSeqLen 序列截断阈值。默认 10。
	MaxSeqLen int

	// MaxKeys 对象键数截断阈值。默认 15。
	MaxKeys int
}

// NewVerbositySummarizer 创建带默认阈值的摘要截断策略。
func NewVerbositySummarizer() *VerbositySummarizer {
	return &VerbositySummarizer{
		MaxStringLen: 200,
		MaxSeqLen:    10,
		MaxKeys:      15,
	}
}

// Name 返回策略名称。
func (s *VerbositySummarizer) Name() string { return "verbosity-summarizer" }

// Apply 返回摘要截断后的负载。
func (s *VerbositySummarizer) Apply(_ string, payload interface{}) interface{} {
	return s.summarize(normalizePayload(payload), false)
}

// summarize 递归截断。essential 标记当前子树是否豁免。
func (s *VerbositySummarizer) summarize(value interface{}, essential bool) interface{} {
	switch v := value.(type) {
	case string:
		if essential {
			return v
		}
		// 按字符截断，避免把多字节字符切成无效 UTF-8。
		runes := []rune(v)
		if len(runes) <= s.MaxStringLen {
			return v
		}
		return fmt.Sprintf("%s... %d more chars", string(runes[:s.MaxStringLen]), len(runes)-s.MaxStringLen)

	case []interface{}:
		if !essential && len(v) > s.MaxSeqLen {
			truncated := make([]interface{}, 0, s.MaxSeqLen+1)
			for _, item := range v[:s.MaxSeqLen] {
				truncated = append(truncated, s.summarize(item, essential))
			}
			truncated = append(truncated, fmt.Sprintf("... %d more items", len(v)-s.MaxSeqLen))
			return truncated
		}
		result := make([]interface{}, 0, len(v))
		for _, item := range v {
			result = append(result, s.summarize(item, essential))
		}
		return result

	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}

		if !essential && len(keys) > s.MaxKeys {
			keys = selectKeys(keys, s.MaxKeys)
		}

		result := make(map[string]interface{}, len(keys))
		for _, key := range keys {
			result[key] = s.summarize(v[key], essential || isEssentialKey(key))
		}
		if !essential && len(result) < len(v) {
			result["_truncated_keys"] = len(v) - len(result)
		}
		return result

	default:
		return value
	}
}

// selectKeys 在截断对象时保留 limit 个键，要点键优先。
func selectKeys(keys []string, limit int) []string {
	selected := make([]string, 0, limit)
	for _, key := range keys {
		if isEssentialKey(key) {
			selected = append(selected, key)
		}
	}
	for _, key := range keys {
		if len(selected) >= limit {
			break
		}
		if !isEssentialKey(key) {
			selected = append(selected, key)
		}
	}
	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// isEssentialKey 识别过于重要而不可截断的字段名。
func isEssentialKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "error") ||
		strings.Contains(lower, "valid") ||
		strings.Contains(lower, "id")
}

// 编译时接口检查
var _ Strategy = (*RedundancyRemoval)(nil)
var _ Strategy = (*VerbositySummarizer)(nil)
