package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"Mnemo/pkg/circuitbreaker"
)

// countingModel counts calls to the underlying provider.
type countingModel struct {
	calls int
	err   error
	delay time.Duration
}

func (m *countingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return []float32{1, 2, 3}, nil
}

func (m *countingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func TestCachedAvoidsRepeatCalls(t *testing.T) {
	inner := &countingModel{}
	cached, err := NewCached(inner, 10)
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}
	ctx := context.Background()

	cached.Embed(ctx, "hello")
	cached.Embed(ctx, "hello")
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	cached.Embed(ctx, "world")
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestCachedBatchOnlyFetchesMisses(t *testing.T) {
	inner := &countingModel{}
	cached, _ := NewCached(inner, 10)
	ctx := context.Background()

	cached.Embed(ctx, "a")
	inner.calls = 0

	vecs, err := cached.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 2 || vecs[0] == nil || vecs[1] == nil {
		t.Fatalf("EmbedBatch() = %v", vecs)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (only the miss)", inner.calls)
	}
}

func TestGuardedTranslatesOpenCircuit(t *testing.T) {
	inner := &countingModel{err: errors.New("provider down")}
	breaker := circuitbreaker.New(1, 1, time.Minute)
	guarded := NewGuarded(inner, breaker, 0)
	ctx := context.Background()

	// First call fails and trips the breaker.
	if _, err := guarded.Embed(ctx, "x"); err == nil {
		t.Fatal("Embed() error = nil, want provider error")
	}

	// Second call is rejected by the open circuit and mapped to ErrUnavailable.
	_, err := guarded.Embed(ctx, "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Embed() error = %v, want ErrUnavailable", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (open circuit must not call through)", inner.calls)
	}
}

func TestGuardedTranslatesTimeout(t *testing.T) {
	inner := &countingModel{delay: 100 * time.Millisecond}
	guarded := NewGuarded(inner, nil, 10*time.Millisecond)

	_, err := guarded.Embed(context.Background(), "slow")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Embed() error = %v, want ErrUnavailable on timeout", err)
	}
}

func TestMockModelIsDeterministic(t *testing.T) {
	m := NewMockModel(16)
	ctx := context.Background()

	a, err := m.Embed(ctx, "same text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, _ := m.Embed(ctx, "same text")
	other, _ := m.Embed(ctx, "different text")

	if len(a) != 16 {
		t.Fatalf("dimension = %d, want 16", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different vectors")
		}
	}

	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}
