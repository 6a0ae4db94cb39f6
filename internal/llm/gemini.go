package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// streamBuffer 是流式响应通道的缓冲区大小。
// 有界通道让慢消费者对生产端形成背压，而不是无限堆积内存。
const streamBuffer = 16

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
type Gemini struct {
	model *genai.GenerativeModel
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{model: client.GenerativeModel(model)}, nil
}

// Generate 向 Gemini API 发送请求并返回拼接后的完整文本响应。
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return flattenResponse(resp), nil
}

// GenerateStream 向 Gemini API 发送请求并把部分文本片段写入有界通道。
func (g *Gemini) GenerateStream(ctx context.Context, prompt string) (<-chan string, error) {
	ch := make(chan string, streamBuffer)
	iter := g.model.GenerateContentStream(ctx, genai.Text(prompt))

	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				return
			}
			select {
			case ch <- flattenResponse(resp):
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// flattenResponse 将响应中所有候选的文本部分拼接为单个字符串。
func flattenResponse(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
