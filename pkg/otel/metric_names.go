package otel

// 预定义的指标名称
// 遵循 OpenTelemetry 语义约定
const (
	// 上下文采集指标
	MetricGatherRuns       = "context.gather.runs"       // 计数器: 采集周期次数
	MetricGatherDuration   = "context.gather.duration"   // 直方图: 采集周期耗时(ms)
	MetricGatherBlobs      = "context.gather.blobs"      // 直方图: 单次采集返回的信号块数
	MetricProviderCalls    = "context.provider.calls"    // 计数器: 提供者调用次数
	MetricProviderDuration = "context.provider.duration" // 直方图: 提供者调用耗时(ms)
	MetricProviderErrors   = "context.provider.errors"   // 计数器: 提供者失败次数

	// 压缩指标
	MetricCompressionRuns  = "context.compression.runs"  // 计数器: 压缩执行次数
	MetricCompressionRatio = "context.compression.ratio" // 直方图: 压缩比(压后/压前)
	MetricTokensBefore     = "context.tokens.before"     // 直方图: 压缩前 Token 数
	MetricTokensAfter      = "context.tokens.after"      // 直方图: 压缩后 Token 数

	// 缓存指标
	MetricCacheHits        = "context.cache.hits"        // 计数器: 缓存命中次数
	MetricCacheMisses      = "context.cache.misses"      // 计数器: 缓存未命中次数
	MetricCacheEvictions   = "context.cache.evictions"   // 计数器: 容量淘汰次数
	MetricCacheExpirations = "context.cache.expirations" // 计数器: TTL 过期次数
	MetricCacheSize        = "context.cache.size"        // 仪表: 缓存占用字节数

	// 对话指标
	MetricChatRequests        = "chat.requests"         // 计数器: 对话请求次数
	MetricChatRequestDuration = "chat.request.duration" // 直方图: 对话请求耗时(ms)
	MetricChatTokensPrompt    = "chat.tokens.prompt"    // 计数器: Prompt Token 总数
	MetricChatTokensTotal     = "chat.tokens.total"     // 计数器: 总 Token 数
	MetricChatErrors          = "chat.errors"           // 计数器: 对话错误次数
)

// MetricUnit 指标单位
type MetricUnit string

const (
	UnitNone         MetricUnit = ""
	UnitMilliseconds MetricUnit = "ms"
	UnitSeconds      MetricUnit = "s"
	UnitBytes        MetricUnit = "By"
	UnitCount        MetricUnit = "1"
)

// MetricDescription 指标描述
type MetricDescription struct {
	Name        string
	Description string
	Unit        MetricUnit
	Type        string // counter, histogram, gauge
}

// PredefinedMetrics 预定义指标列表
var PredefinedMetrics = []MetricDescription{
	{MetricGatherRuns, "Number of context gather cycles", UnitCount, "counter"},
	{MetricGatherDuration, "Duration of context gather cycles", UnitMilliseconds, "histogram"},
	{MetricGatherBlobs, "Number of blobs returned per gather", UnitCount, "histogram"},
	{MetricProviderCalls, "Number of provider invocations", UnitCount, "counter"},
	{MetricProviderDuration, "Duration of provider invocations", UnitMilliseconds, "histogram"},
	{MetricProviderErrors, "Number of provider failures", UnitCount, "counter"},

	{MetricCompressionRuns, "Number of compression runs", UnitCount, "counter"},
	{MetricCompressionRatio, "Ratio of tokens after to before compression", UnitNone, "histogram"},
	{MetricTokensBefore, "Token count before compression", UnitCount, "histogram"},
	{MetricTokensAfter, "Token count after compression", UnitCount, "histogram"},

	{MetricCacheHits, "Number of cache hits", UnitCount, "counter"},
	{MetricCacheMisses, "Number of cache misses", UnitCount, "counter"},
	{MetricCacheEvictions, "Number of capacity evictions", UnitCount, "counter"},
	{MetricCacheExpirations, "Number of TTL expirations", UnitCount, "counter"},
	{MetricCacheSize, "Current cache size in bytes", UnitBytes, "gauge"},

	{MetricChatRequests, "Number of chat requests", UnitCount, "counter"},
	{MetricChatRequestDuration, "Duration of chat requests", UnitMilliseconds, "histogram"},
	{MetricChatTokensPrompt, "Number of prompt tokens", UnitCount, "counter"},
	{MetricChatTokensTotal, "Total number of tokens", UnitCount, "counter"},
	{MetricChatErrors, "Number of chat errors", UnitCount, "counter"},
}
