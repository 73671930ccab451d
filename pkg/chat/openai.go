package chat

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ericbfriday/clippyjs-sub002/pkg/core/config"
	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

// Client 定义对话客户端接口。
type Client interface {
	// Chat 发送消息列表并返回应答。
	Chat(ctx context.Context, messages []Message) (Reply, error)

	// Model 返回当前模型名称。
	Model() string

	// Close 关闭客户端连接。
	Close() error
}

// OpenAIClient OpenAI 对话客户端
type OpenAIClient struct {
	client  *openai.Client
	config  config.ChatConfig
	logger  otel.Logger
	metrics otel.Metrics
}

// ClientOption 配置 OpenAIClient。
type ClientOption func(*OpenAIClient)

// WithClientLogger 设置日志器。
func WithClientLogger(logger otel.Logger) ClientOption {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// WithClientMetrics 设置指标收集器。
func WithClientMetrics(metrics otel.Metrics) ClientOption {
	return func(c *OpenAIClient) {
		c.metrics = metrics
	}
}

// NewOpenAIClient 创建 OpenAI 对话客户端
func NewOpenAIClient(cfg config.ChatConfig, opts ...ClientOption) (*OpenAIClient, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, errors.ErrInvalidAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	c := &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		logger:  otel.NewNoopLogger(),
		metrics: otel.NewNoopMetrics(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Model 返回当前模型名称
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

// Close 关闭客户端连接
func (c *OpenAIClient) Close() error {
	return nil
}

// Chat 发送消息列表并返回应答（带重试）
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (Reply, error) {
	if len(messages) == 0 {
		return Reply{}, errors.ErrEmptyContext
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: convertMessages(messages),
	}

	startTime := time.Now()
	var resp openai.ChatCompletionResponse
	err := c.retry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	duration := time.Since(startTime)

	c.metrics.Histogram(otel.MetricChatRequestDuration).Record(ctx, duration.Seconds()*1000,
		otel.NewAttr("model", c.config.Model),
	)

	if err != nil {
		c.metrics.Counter(otel.MetricChatErrors).Add(ctx, 1,
			otel.NewAttr("model", c.config.Model),
		)
		return Reply{}, errors.WrapError(err, "chat completion failed")
	}

	reply := parseReply(resp)
	c.metrics.Counter(otel.MetricChatRequests).Add(ctx, 1,
		otel.NewAttr("model", c.config.Model),
	)
	c.metrics.Counter(otel.MetricChatTokensPrompt).Add(ctx, int64(reply.PromptTokens),
		otel.NewAttr("model", c.config.Model),
	)
	c.metrics.Counter(otel.MetricChatTokensTotal).Add(ctx, int64(reply.TotalTokens),
		otel.NewAttr("model", c.config.Model),
	)

	return reply, nil
}

// retry 指数退避重试。ctx 取消后立即返回。
func (c *OpenAIClient) retry(ctx context.Context, fn func() error) error {
	delay := time.Second
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("chat request retrying",
				"attempt", attempt, "error", lastErr)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

// convertMessages 转换消息格式
func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}

// parseReply 解析应答
func parseReply(resp openai.ChatCompletionResponse) Reply {
	reply := Reply{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if len(resp.Choices) > 0 {
		reply.Content = resp.Choices[0].Message.Content
		reply.FinishReason = string(resp.Choices[0].FinishReason)
	}

	return reply
}

// 编译时接口检查
var _ Client = (*OpenAIClient)(nil)
