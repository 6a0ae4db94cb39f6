package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Mnemo/pkg/circuitbreaker"
	"Mnemo/pkg/util"
)

// Cached 是一个装饰器，用 LRU 缓存包装任意 Embedding 实现。
// 嵌入对相同文本是确定性的（见接口约定），因此缓存命中与真实调用等价。
type Cached struct {
	inner Embedding
	cache *util.LRUCache[string, []float32]
}

// NewCached 创建一个带缓存的 Embedding 装饰器。
func NewCached(inner Embedding, capacity int) (*Cached, error) {
	cache, err := util.NewLRUCache[string, []float32](capacity, 0)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed 先查缓存，未命中时调用底层实现并写入缓存。
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(text, vec)
	return vec, nil
}

// EmbedBatch 逐条复用缓存；只有未命中的文本才会发给底层实现。
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if vec, ok := c.cache.Get(t); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, vec := range vecs {
		c.cache.Put(missing[j], vec)
		out[missingIdx[j]] = vec
	}
	return out, nil
}

// Guarded 是一个装饰器，用熔断器和超时包装任意 Embedding 实现。
// 提供商持续故障时熔断器打开，调用立即返回 ErrUnavailable，
// 上层据此进入降级模式而不是在每次调用上等待超时。
type Guarded struct {
	inner   Embedding
	breaker *circuitbreaker.Breaker
	timeout time.Duration
}

// NewGuarded 创建一个受熔断器保护的 Embedding 装饰器。
// breaker 为 nil 时只附加超时；timeout 为 0 时不附加超时。
func NewGuarded(inner Embedding, breaker *circuitbreaker.Breaker, timeout time.Duration) *Guarded {
	return &Guarded{inner: inner, breaker: breaker, timeout: timeout}
}

func (g *Guarded) execute(req func() error) error {
	if g.breaker == nil {
		return req()
	}
	return g.breaker.Execute(req)
}

// Embed 在熔断器允许时执行底层调用。
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.execute(func() error {
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		var innerErr error
		vec, innerErr = g.inner.Embed(callCtx, text)
		return innerErr
	})
	if err != nil {
		return nil, g.translate(err)
	}
	return vec, nil
}

// EmbedBatch 在熔断器允许时执行底层批量调用。
func (g *Guarded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := g.execute(func() error {
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		var innerErr error
		vecs, innerErr = g.inner.EmbedBatch(callCtx, texts)
		return innerErr
	})
	if err != nil {
		return nil, g.translate(err)
	}
	return vecs, nil
}

func (g *Guarded) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Guarded) translate(err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
