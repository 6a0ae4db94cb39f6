package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
)

// NewEmdModel 根据指定的提供商、模型、API 密钥和基础 URL 创建并返回一个新的
// Embedding 模型实例。
//
// 参数:
//
//	provider: Embedding 模型的提供商 (例如: "gemini", "openai", "ollama", "mock")。
//	model: 要使用的模型名称。
//	apiKey: 模型的 API 密钥。
//	baseURL: 模型的服务基础 URL (可选，某些提供商可能不需要)。
//	dimension: 向量维度 (仅 mock 提供商使用)。
func NewEmdModel(provider, model, apiKey, baseURL string, dimension int) (Embedding, error) {
	switch ModelType(provider) {
	case Google:
		return NewGoogleModel(apiKey, model)
	case OpenAI:
		return NewOpenAIModel(apiKey, model)
	case Ollama:
		return NewOllamaModel(model, baseURL)
	case Mock:
		return NewMockModel(dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// MockModel 是一个确定性的本地嵌入实现，用于测试和无外部依赖的本地模式。
// 相同文本永远得到相同向量；不保证语义相似性。
type MockModel struct {
	dimension int
}

// NewMockModel 创建一个指定维度的 MockModel。
func NewMockModel(dimension int) *MockModel {
	return &MockModel{dimension: dimension}
}

// Embed 通过对文本的滚动哈希生成一个归一化的确定性向量。
func (m *MockModel) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimension)
	h := fnv.New64a()
	for i := range vec {
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		// 映射到 [-1, 1]。
		vec[i] = float32(int64(h.Sum64()%2000))/1000.0 - 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// EmbedBatch 为一批文本生成确定性向量。
func (m *MockModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
