package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"Mnemo/internal/models"
)

func turn(content string) models.Turn {
	return models.Turn{Role: models.SpeakerUser, Content: content, Timestamp: time.Now()}
}

func TestTurnStoreAppendAndHistory(t *testing.T) {
	s := NewInMemoryTurnStore(10, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, "sess-1", turn(fmt.Sprintf("turn %d", i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	history, err := s.History(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d turns, want 3", len(history))
	}
	// Chronological order preserved.
	for i, tr := range history {
		if want := fmt.Sprintf("turn %d", i); tr.Content != want {
			t.Errorf("history[%d] = %q, want %q", i, tr.Content, want)
		}
	}
}

func TestTurnStoreFIFOTrim(t *testing.T) {
	s := NewInMemoryTurnStore(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Append(ctx, "sess-1", turn(fmt.Sprintf("turn %d", i)))
	}

	history, _ := s.History(ctx, "sess-1", 10)
	if len(history) != 3 {
		t.Fatalf("got %d turns after trim, want 3", len(history))
	}
	if history[0].Content != "turn 2" || history[2].Content != "turn 4" {
		t.Errorf("oldest turns not evicted first: %q .. %q", history[0].Content, history[2].Content)
	}
}

func TestTurnStoreHistoryLimit(t *testing.T) {
	s := NewInMemoryTurnStore(10, time.Hour)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Append(ctx, "sess-1", turn(fmt.Sprintf("turn %d", i)))
	}

	history, _ := s.History(ctx, "sess-1", 2)
	if len(history) != 2 {
		t.Fatalf("got %d turns, want 2", len(history))
	}
	// The most recent turns, still oldest-first.
	if history[0].Content != "turn 3" || history[1].Content != "turn 4" {
		t.Errorf("limited history wrong: %q, %q", history[0].Content, history[1].Content)
	}
}

func TestTurnStoreUnknownSessionReadsEmpty(t *testing.T) {
	s := NewInMemoryTurnStore(10, time.Hour)

	history, err := s.History(context.Background(), "never-seen", 10)
	if err != nil {
		t.Fatalf("History() error = %v, want nil for unknown session", err)
	}
	if len(history) != 0 {
		t.Errorf("got %d turns, want 0", len(history))
	}
}

func TestTurnStoreTTLExpiry(t *testing.T) {
	s := NewInMemoryTurnStore(10, time.Minute)
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	s.Append(ctx, "sess-1", turn("hello"))

	// Appending refreshes the expiry.
	current = current.Add(50 * time.Second)
	s.Append(ctx, "sess-1", turn("still here"))

	current = current.Add(50 * time.Second)
	if history, _ := s.History(ctx, "sess-1", 10); len(history) != 2 {
		t.Fatalf("session expired despite refresh, got %d turns", len(history))
	}

	current = current.Add(time.Minute)
	if history, _ := s.History(ctx, "sess-1", 10); len(history) != 0 {
		t.Fatalf("expired session still readable, got %d turns", len(history))
	}
	if n, _ := s.Len(ctx, "sess-1"); n != 0 {
		t.Errorf("Len() = %d for expired session, want 0", n)
	}
}

func TestTurnStoreClear(t *testing.T) {
	s := NewInMemoryTurnStore(10, time.Hour)
	ctx := context.Background()
	s.Append(ctx, "sess-1", turn("hello"))

	if err := s.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := s.Len(ctx, "sess-1"); n != 0 {
		t.Errorf("Len() = %d after clear, want 0", n)
	}
	// Clearing again is a no-op, not an error.
	if err := s.Clear(ctx, "sess-1"); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestFactStoreSearchRanksBySimilarity(t *testing.T) {
	s := NewInMemoryFactStore()
	ctx := context.Background()

	s.Insert(ctx, &models.Fact{ID: "a", UserID: "u1", Text: "a", Vector: []float32{1, 0, 0}})
	s.Insert(ctx, &models.Fact{ID: "b", UserID: "u1", Text: "b", Vector: []float32{0.9, 0.1, 0}})
	s.Insert(ctx, &models.Fact{ID: "c", UserID: "u1", Text: "c", Vector: []float32{0, 1, 0}})

	hits, err := s.Search(ctx, "u1", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Fact.ID != "a" || hits[1].Fact.ID != "b" {
		t.Errorf("ranking wrong: %s, %s", hits[0].Fact.ID, hits[1].Fact.ID)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Error("hits not sorted by descending similarity")
	}
}

func TestFactStoreIsolatesUsers(t *testing.T) {
	s := NewInMemoryFactStore()
	ctx := context.Background()

	s.Insert(ctx, &models.Fact{ID: "a", UserID: "u1", Vector: []float32{1, 0}})
	s.Insert(ctx, &models.Fact{ID: "b", UserID: "u2", Vector: []float32{1, 0}})

	hits, _ := s.Search(ctx, "u1", []float32{1, 0}, 10)
	if len(hits) != 1 || hits[0].Fact.ID != "a" {
		t.Errorf("user isolation broken: %+v", hits)
	}

	if n, _ := s.Count(ctx, "u2"); n != 1 {
		t.Errorf("Count(u2) = %d, want 1", n)
	}
	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := s.Count(ctx, "u1"); n != 0 {
		t.Errorf("Count(u1) = %d after clear, want 0", n)
	}
	if n, _ := s.Count(ctx, "u2"); n != 1 {
		t.Errorf("clearing u1 touched u2, Count(u2) = %d", n)
	}
}

func TestGoalStoreLastWriteWins(t *testing.T) {
	s := NewInMemoryGoalStore()
	ctx := context.Background()

	base := time.Now()
	newer := &models.Goal{UserID: "u1", Key: "target_weight", Value: "70kg", UpdatedAt: base.Add(time.Second)}
	older := &models.Goal{UserID: "u1", Key: "target_weight", Value: "75kg", UpdatedAt: base}

	if err := s.Set(ctx, newer); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// The stale write arrives second and must not clobber the newer value.
	if err := s.Set(ctx, older); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	goals, err := s.GetAll(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if goals["target_weight"] != "70kg" {
		t.Errorf("goal = %q, stale write clobbered newer value", goals["target_weight"])
	}
}

func TestGoalStoreKeysAreIndependent(t *testing.T) {
	s := NewInMemoryGoalStore()
	ctx := context.Background()

	s.Set(ctx, &models.Goal{UserID: "u1", Key: "target_weight", Value: "70kg", UpdatedAt: time.Now()})
	s.Set(ctx, &models.Goal{UserID: "u1", Key: "daily_steps", Value: "10000", UpdatedAt: time.Now()})

	goals, _ := s.GetAll(ctx, "u1")
	if len(goals) != 2 {
		t.Fatalf("got %d goals, want 2", len(goals))
	}

	other, _ := s.GetAll(ctx, "u2")
	if len(other) != 0 {
		t.Errorf("GetAll(u2) = %v, want empty", other)
	}
}
