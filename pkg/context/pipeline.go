package context

// Pipeline 压缩流水线。
//
// 按顺序组合多个策略，从分数最低的信号块开始逐一施加，
// 每步后重新测量，累计 Token 数落入预算即停止。
// 策略全部用尽仍超预算时，从尾部丢弃信号块，
// 但至少保留一个（此时结果可能超预算，由调用方通过
// TotalTokenEstimate 与预算的比较来察觉）。
type Pipeline struct {
	strategies []Strategy
	counter    TokenCounter
}

// PipelineOption 配置 Pipeline。
type PipelineOption func(*Pipeline)

// WithStrategies 设置策略链（按施加顺序）。
func WithStrategies(strategies ...Strategy) PipelineOption {
	return func(p *Pipeline) {
		p.strategies = strategies
	}
}

// WithPipelineCounter 设置测量用的 Token 计数器。
func WithPipelineCounter(counter TokenCounter) PipelineOption {
	return func(p *Pipeline) {
		p.counter = counter
	}
}

// NewPipeline 创建默认三级策略链的压缩流水线：
// 冗余剔除 → 摘要截断 → 要点投影。
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		strategies: []Strategy{
			NewRedundancyRemoval(),
			NewVerbositySummarizer(),
			NewEssentialProjection(),
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.counter == nil {
		p.counter = DefaultTokenCounter()
	}

	return p
}

// Fit 将按分数降序排列的信号块压缩到预算内。
// 返回保留的信号块、压缩前的累计 Token 估算和压缩后的估算。
// 输入切片中信号块的负载可能被原地替换为压缩产物。
func (p *Pipeline) Fit(blobs []*ScoredBlob, budget int) ([]*ScoredBlob, int, int) {
	if len(blobs) == 0 {
		return blobs, 0, 0
	}

	tokens := make([]int, len(blobs))
	total := 0
	for i, sb := range blobs {
		tokens[i] = p.measure(sb)
		total += tokens[i]
	}
	before := total

	if budget <= 0 || total <= budget {
		return blobs, before, total
	}

	// 从分数最低的信号块开始，逐级加重压缩
	for _, strategy := range p.strategies {
		for i := len(blobs) - 1; i >= 0 && total > budget; i-- {
			sb := blobs[i]
			sb.Blob.Payload = strategy.Apply(sb.Blob.Provider, sb.Blob.Payload)

			measured := p.measure(sb)
			total += measured - tokens[i]
			tokens[i] = measured
		}
		if total <= budget {
			return blobs, before, total
		}
	}

	// 策略用尽仍超预算：从尾部丢弃，至少保留一个
	for len(blobs) > 1 && total > budget {
		last := len(blobs) - 1
		total -= tokens[last]
		blobs = blobs[:last]
		tokens = tokens[:last]
	}

	return blobs, before, total
}

// measure 估算单个信号块的 Token 数（含提供者元数据开销）。
func (p *Pipeline) measure(sb *ScoredBlob) int {
	const metadataOverhead = 8 // 提供者名称与时间戳字段

	return p.counter.CountPayload(sb.Blob.Payload) + metadataOverhead
}
