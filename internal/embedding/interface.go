package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable 表示嵌入提供商暂时不可用（超时、熔断或网络错误）。
// 调用方应将其转化为降级模式，而不是让整个会话回合失败。
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedding 定义了所有 embedding 模型需要实现的接口。
// 对相同文本，实现必须返回确定性的向量，否则去重和缓存都将失去意义。
type Embedding interface {
	// Embed 为单个文本生成嵌入向量。
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 为一批文本生成嵌入向量。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelType 是一个枚举类型，用于表示不同的模型厂商。
type ModelType string

const (
	OpenAI ModelType = "openai" // OpenAI 模型类型。
	Google ModelType = "gemini" // Google 模型类型。
	Ollama ModelType = "ollama" // Ollama 模型类型。
	Mock   ModelType = "mock"   // 测试与本地模式使用的确定性模型。
)
