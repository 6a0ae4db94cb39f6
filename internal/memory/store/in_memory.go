package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"Mnemo/internal/models"
)

// In-memory implementations of the three tiers. They back the "local"
// configuration (development without redis/milvus/mongo) and the package
// tests. All are thread-safe.

// InMemoryTurnStore is a TurnStore holding bounded, expiring turn logs in
// process memory.
type InMemoryTurnStore struct {
	mu       sync.RWMutex
	maxTurns int
	ttl      time.Duration
	sessions map[string]*sessionLog
	now      func() time.Time
}

type sessionLog struct {
	turns     []models.Turn
	expiresAt time.Time
}

// NewInMemoryTurnStore creates an InMemoryTurnStore with the given bound and
// TTL.
func NewInMemoryTurnStore(maxTurns int, ttl time.Duration) *InMemoryTurnStore {
	return &InMemoryTurnStore{
		maxTurns: maxTurns,
		ttl:      ttl,
		sessions: make(map[string]*sessionLog),
		now:      time.Now,
	}
}

// Append adds a turn, refreshes the expiry and trims oldest turns beyond the
// bound.
func (s *InMemoryTurnStore) Append(_ context.Context, sessionID string, turn models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.sessions[sessionID]
	if !ok || s.now().After(log.expiresAt) {
		log = &sessionLog{}
		s.sessions[sessionID] = log
	}
	log.turns = append(log.turns, turn)
	if overflow := len(log.turns) - s.maxTurns; overflow > 0 {
		log.turns = log.turns[overflow:]
	}
	log.expiresAt = s.now().Add(s.ttl)
	return nil
}

// History returns up to limit most recent turns in chronological order.
// Unknown or expired sessions read as empty.
func (s *InMemoryTurnStore) History(_ context.Context, sessionID string, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.sessions[sessionID]
	if !ok || s.now().After(log.expiresAt) || limit <= 0 {
		return nil, nil
	}

	start := len(log.turns) - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Turn, len(log.turns)-start)
	copy(out, log.turns[start:])
	return out, nil
}

// Len returns the current turn count for the session.
func (s *InMemoryTurnStore) Len(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.sessions[sessionID]
	if !ok || s.now().After(log.expiresAt) {
		return 0, nil
	}
	return len(log.turns), nil
}

// Clear deletes the session. Idempotent.
func (s *InMemoryTurnStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// InMemoryFactStore is a FactStore that scans per-user fact slices with an
// exact cosine similarity computation.
type InMemoryFactStore struct {
	mu    sync.RWMutex
	facts map[string][]*models.Fact // keyed by userID
}

// NewInMemoryFactStore creates an empty InMemoryFactStore.
func NewInMemoryFactStore() *InMemoryFactStore {
	return &InMemoryFactStore{facts: make(map[string][]*models.Fact)}
}

// Insert stores a fact under its user.
func (s *InMemoryFactStore) Insert(_ context.Context, fact *models.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[fact.UserID] = append(s.facts[fact.UserID], fact)
	return nil
}

// Search scores every fact of the user against the query vector and returns
// the topK highest, descending by similarity.
func (s *InMemoryFactStore) Search(_ context.Context, userID string, vector []float32, topK int) ([]models.ScoredFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]models.ScoredFact, 0, len(s.facts[userID]))
	for _, fact := range s.facts[userID] {
		scored = append(scored, models.ScoredFact{
			Fact:       fact,
			Similarity: cosineSimilarity(vector, fact.Vector),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Count returns the number of facts stored for the user.
func (s *InMemoryFactStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts[userID]), nil
}

// Clear deletes all facts for a user. Idempotent.
func (s *InMemoryFactStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.facts, userID)
	return nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// InMemoryGoalStore is a GoalStore holding per-user goal maps with
// timestamp-based last-write-wins.
type InMemoryGoalStore struct {
	mu    sync.RWMutex
	goals map[string]map[string]models.Goal // userID -> key -> goal
}

// NewInMemoryGoalStore creates an empty InMemoryGoalStore.
func NewInMemoryGoalStore() *InMemoryGoalStore {
	return &InMemoryGoalStore{goals: make(map[string]map[string]models.Goal)}
}

// Set stores the goal unless a newer value for the same key already exists.
func (s *InMemoryGoalStore) Set(_ context.Context, goal *models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.goals[goal.UserID]
	if !ok {
		byKey = make(map[string]models.Goal)
		s.goals[goal.UserID] = byKey
	}
	if existing, ok := byKey[goal.Key]; ok && !existing.UpdatedAt.Before(goal.UpdatedAt) {
		return nil // stale write, newer value already present
	}
	byKey[goal.Key] = *goal
	return nil
}

// GetAll returns every goal for the user keyed by goal key.
func (s *InMemoryGoalStore) GetAll(_ context.Context, userID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.goals[userID]))
	for key, goal := range s.goals[userID] {
		out[key] = goal.Value
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ TurnStore = (*InMemoryTurnStore)(nil)
	_ FactStore = (*InMemoryFactStore)(nil)
	_ GoalStore = (*InMemoryGoalStore)(nil)

	_ TurnStore = (*RedisTurnStore)(nil)
	_ FactStore = (*MilvusFactStore)(nil)
	_ GoalStore = (*MongoGoalStore)(nil)
)
