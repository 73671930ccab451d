package chat

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	assistantctx "github.com/ericbfriday/clippyjs-sub002/pkg/context"
)

// RenderContext 将组装结果渲染为系统提示文本。
//
// 每个信号块输出一段，按分数降序排列，
// 提供者名称、时间戳和负载逐段列出。
func RenderContext(result *assistantctx.GatherResult) string {
	if result == nil || len(result.Blobs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Current page context (most relevant first):\n")

	for _, scored := range result.Blobs {
		blob := scored.Blob
		sb.WriteString(fmt.Sprintf("\n[%s] (relevance %.2f, captured %s)\n",
			blob.Provider, scored.Score, blob.Timestamp.Format("15:04:05")))
		sb.WriteString(renderPayload(blob.Payload))
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderPayload 将负载渲染为缩进 JSON，失败时降级为 %v。
func renderPayload(payload interface{}) string {
	data, err := sonic.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

// BuildMessages 从组装结果和用户提问构建消息列表。
func BuildMessages(result *assistantctx.GatherResult, systemInstructions, query string) []Message {
	messages := make([]Message, 0, 3)

	system := systemInstructions
	if rendered := RenderContext(result); rendered != "" {
		if system != "" {
			system += "\n\n"
		}
		system += rendered
	}
	if system != "" {
		messages = append(messages, NewSystemMessage(system))
	}

	if query != "" {
		messages = append(messages, NewUserMessage(query))
	}

	return messages
}
