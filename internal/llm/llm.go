package llm

import (
	"context"
	"fmt"
)

// LLM 定义了事实提取所需的最小语言模型接口。
type LLM interface {
	// Generate 发送单条提示词并返回完整的文本响应。
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream 以流式方式返回部分文本片段。
	// 通道是有界的；完整文本由调用方拼接，数值校验只在完整文本上执行一次。
	GenerateStream(ctx context.Context, prompt string) (<-chan string, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(provider, model, apiKey string) (LLM, error) {
	switch provider {
	case "gemini":
		return NewGemini(context.Background(), model, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
