package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Mnemo/internal/embedding"
	"Mnemo/internal/memory/semantic"
	"Mnemo/internal/memory/store"
	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
)

// fixedEmbedder returns the same vector for every text, or an error for
// texts listed in failFor.
type fixedEmbedder struct {
	vec     []float32
	failFor map[string]bool
	delay   time.Duration
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", embedding.ErrUnavailable, ctx.Err())
		}
	}
	if f.failFor[text] {
		return nil, embedding.ErrUnavailable
	}
	return f.vec, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// stubExtractor returns canned candidates.
type stubExtractor struct {
	candidates []string
	err        error
}

func (s *stubExtractor) Extract(_ context.Context, _ models.ConversationSlice) ([]string, error) {
	return s.candidates, s.err
}

func newTestCoordinator(embedder embedding.Embedding, ext *stubExtractor) (*Coordinator, *store.InMemoryFactStore, store.GoalStore) {
	log := logger.New("coordinator_test", "", "")
	facts := store.NewInMemoryFactStore()
	goals := store.NewInMemoryGoalStore()
	turns := store.NewInMemoryTurnStore(50, time.Hour)
	index := semantic.NewIndex(facts, embedder, 0.95, log)

	if ext == nil {
		ext = &stubExtractor{}
	}
	c := NewCoordinator(turns, index, goals, embedder, ext, Options{
		MaxHistoryTurns: 50,
		TopK:            5,
		MinSimilarity:   0.5,
		RetrieveTimeout: 200 * time.Millisecond,
	}, log)
	return c, facts, goals
}

func TestRetrieveContextHappyPath(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}}
	c, facts, _ := newTestCoordinator(embedder, nil)
	ctx := context.Background()

	c.PersistTurn(ctx, "sess-1", models.Turn{Role: models.SpeakerUser, Content: "hi"})
	c.SetGoal(ctx, &models.Goal{UserID: "u1", Key: "daily_steps", Value: "10000"})
	facts.Insert(ctx, &models.Fact{ID: "f1", UserID: "u1", Text: "runs daily", Vector: []float32{1, 0, 0}})

	got, err := c.RetrieveContext(ctx, "sess-1", "u1", "how am I doing")
	if err != nil {
		t.Fatalf("RetrieveContext() error = %v", err)
	}
	if got.Degraded {
		t.Error("Degraded = true on healthy path")
	}
	if len(got.History) != 1 {
		t.Errorf("got %d history turns, want 1", len(got.History))
	}
	if len(got.SemanticHits) != 1 {
		t.Errorf("got %d semantic hits, want 1", len(got.SemanticHits))
	}
	if got.Goals["daily_steps"] != "10000" {
		t.Errorf("goals = %v", got.Goals)
	}
}

func TestRetrieveContextDegradesOnEmbeddingFailure(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}, failFor: map[string]bool{"query": true}}
	c, _, _ := newTestCoordinator(embedder, nil)
	ctx := context.Background()

	c.PersistTurn(ctx, "sess-1", models.Turn{Role: models.SpeakerUser, Content: "hi"})
	c.SetGoal(ctx, &models.Goal{UserID: "u1", Key: "daily_steps", Value: "10000"})

	got, err := c.RetrieveContext(ctx, "sess-1", "u1", "query")
	if err != nil {
		t.Fatalf("RetrieveContext() error = %v, must succeed degraded", err)
	}
	if !got.Degraded {
		t.Error("Degraded = false, want true on embedding failure")
	}
	if len(got.SemanticHits) != 0 {
		t.Errorf("got %d semantic hits, want 0", len(got.SemanticHits))
	}
	// History and goals still populated.
	if len(got.History) != 1 || got.Goals["daily_steps"] != "10000" {
		t.Errorf("degraded context lost history/goals: %+v", got)
	}
}

func TestRetrieveContextDegradesOnEmbeddingTimeout(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}, delay: time.Second}
	c, _, _ := newTestCoordinator(embedder, nil)

	start := time.Now()
	got, err := c.RetrieveContext(context.Background(), "sess-1", "u1", "slow query")
	if err != nil {
		t.Fatalf("RetrieveContext() error = %v", err)
	}
	if !got.Degraded {
		t.Error("Degraded = false, want true on timeout")
	}
	if elapsed := time.Since(start); elapsed > 800*time.Millisecond {
		t.Errorf("retrieval took %v, the timeout did not bound it", elapsed)
	}
}

func TestPersistTurnOrdering(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}}
	c, _, _ := newTestCoordinator(embedder, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := c.PersistTurn(ctx, "sess-1", models.Turn{Role: models.SpeakerUser, Content: fmt.Sprintf("turn %d", i)}); err != nil {
			t.Fatalf("PersistTurn() error = %v", err)
		}
	}

	got, _ := c.RetrieveContext(ctx, "sess-1", "u1", "q")
	if len(got.History) != 10 {
		t.Fatalf("got %d turns, want 10", len(got.History))
	}
	for i, turn := range got.History {
		if want := fmt.Sprintf("turn %d", i); turn.Content != want {
			t.Errorf("history[%d] = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestExtractAndStoreFacts(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}}
	// Identical vectors for every candidate: the second collapses into the
	// first through dedup but still counts as stored.
	ext := &stubExtractor{candidates: []string{"runs daily", "prefers tea"}}
	c, facts, _ := newTestCoordinator(embedder, ext)
	ctx := context.Background()

	stored, err := c.ExtractAndStoreFacts(ctx, models.ConversationSlice{SessionID: "sess-1", UserID: "u1"})
	if err != nil {
		t.Fatalf("ExtractAndStoreFacts() error = %v", err)
	}
	if stored != 2 {
		t.Errorf("stored = %d, want 2", stored)
	}
	if n, _ := facts.Count(ctx, "u1"); n != 1 {
		t.Errorf("Count() = %d, want 1 after dedup", n)
	}
}

func TestExtractAndStoreFactsIsolatesFailures(t *testing.T) {
	embedder := &fixedEmbedder{
		vec:     []float32{1, 0, 0},
		failFor: map[string]bool{"bad candidate": true},
	}
	ext := &stubExtractor{candidates: []string{"bad candidate", "good candidate"}}
	c, facts, _ := newTestCoordinator(embedder, ext)
	ctx := context.Background()

	stored, err := c.ExtractAndStoreFacts(ctx, models.ConversationSlice{SessionID: "sess-1", UserID: "u1"})
	if err != nil {
		t.Fatalf("ExtractAndStoreFacts() error = %v, one bad candidate must not abort the batch", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1", stored)
	}
	if n, _ := facts.Count(ctx, "u1"); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestExtractAndStoreFactsExtractorError(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}}
	ext := &stubExtractor{err: errors.New("model unavailable")}
	c, _, _ := newTestCoordinator(embedder, ext)

	if _, err := c.ExtractAndStoreFacts(context.Background(), models.ConversationSlice{UserID: "u1"}); err == nil {
		t.Fatal("ExtractAndStoreFacts() error = nil, want extractor error surfaced")
	}
}

func TestStatsAndClear(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}}
	c, facts, _ := newTestCoordinator(embedder, nil)
	ctx := context.Background()

	c.PersistTurn(ctx, "sess-1", models.Turn{Role: models.SpeakerUser, Content: "hi"})
	c.SetGoal(ctx, &models.Goal{UserID: "u1", Key: "daily_steps", Value: "10000"})
	facts.Insert(ctx, &models.Fact{ID: "f1", UserID: "u1", Vector: []float32{1, 0, 0}})

	stats, err := c.Stats(ctx, "sess-1", "u1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.HistoryTurns != 1 || stats.Facts != 1 || stats.Goals != 1 {
		t.Errorf("stats = %+v, want 1/1/1", stats)
	}

	if err := c.ClearSession(ctx, "sess-1"); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if err := c.ClearUserFacts(ctx, "u1"); err != nil {
		t.Fatalf("ClearUserFacts() error = %v", err)
	}

	stats, _ = c.Stats(ctx, "sess-1", "u1")
	if stats.HistoryTurns != 0 || stats.Facts != 0 {
		t.Errorf("stats after clear = %+v, want empty history and facts", stats)
	}
}
