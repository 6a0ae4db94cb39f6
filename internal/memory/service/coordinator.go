package service

import (
	"context"
	"sync"
	"time"

	"Mnemo/internal/embedding"
	"Mnemo/internal/memory/extractor"
	"Mnemo/internal/memory/semantic"
	"Mnemo/internal/memory/store"
	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
	"Mnemo/pkg/util"
)

// Coordinator is the single entry point the agent loop talks to. It fans out
// across the three memory tiers (episodic turn log, semantic fact index,
// procedural goals) and owns the degradation policy: a failed or slow
// semantic lookup never blocks the conversation, it just marks the context
// degraded.
type Coordinator struct {
	turns     store.TurnStore
	semantic  *semantic.Index
	goals     store.GoalStore
	embedder  embedding.Embedding
	extractor extractor.Extractor

	maxHistoryTurns int
	topK            int
	minSimilarity   float64
	retrieveTimeout time.Duration

	sessionLocks *util.KeyedMutex
	logger       *logger.Logger
}

// Options carries the retrieval tuning knobs, already validated by the
// config layer.
type Options struct {
	MaxHistoryTurns int
	TopK            int
	MinSimilarity   float64
	RetrieveTimeout time.Duration
}

func NewCoordinator(
	turns store.TurnStore,
	index *semantic.Index,
	goals store.GoalStore,
	embedder embedding.Embedding,
	ext extractor.Extractor,
	opts Options,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		turns:           turns,
		semantic:        index,
		goals:           goals,
		embedder:        embedder,
		extractor:       ext,
		maxHistoryTurns: opts.MaxHistoryTurns,
		topK:            opts.TopK,
		minSimilarity:   opts.MinSimilarity,
		retrieveTimeout: opts.RetrieveTimeout,
		sessionLocks:    util.NewKeyedMutex(),
		logger:          log,
	}
}

// RetrieveContext gathers recent history, relevant facts and active goals
// for one conversation turn. The three tiers are queried concurrently.
// Semantic retrieval runs under its own deadline; if embedding the query
// fails or times out, or the fact store is unreachable, the context comes
// back with Degraded set and the other tiers intact. Episodic and procedural
// read failures likewise degrade to cold state rather than failing the turn.
func (c *Coordinator) RetrieveContext(ctx context.Context, sessionID, userID, query string) (*models.RetrievedContext, error) {
	result := &models.RetrievedContext{Goals: map[string]string{}}

	var mu sync.Mutex
	markDegraded := func() {
		mu.Lock()
		result.Degraded = true
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		history, err := c.turns.History(ctx, sessionID, c.maxHistoryTurns)
		if err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("episodic read failed, continuing without history")
			markDegraded()
			return
		}
		result.History = history
	}()

	go func() {
		defer wg.Done()
		goals, err := c.goals.GetAll(ctx, userID)
		if err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("goal read failed, continuing without goals")
			markDegraded()
			return
		}
		mu.Lock()
		result.Goals = goals
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		semCtx, cancel := context.WithTimeout(ctx, c.retrieveTimeout)
		defer cancel()

		vector, err := c.embedder.Embed(semCtx, query)
		if err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("query embedding unavailable, semantic tier skipped")
			markDegraded()
			return
		}
		hits, err := c.semantic.Query(semCtx, userID, vector, c.topK, c.minSimilarity)
		if err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("semantic search failed, continuing without facts")
			markDegraded()
			return
		}
		result.SemanticHits = hits
	}()

	wg.Wait()
	return result, nil
}

// PersistTurn appends one turn to the session's episodic log. Appends for the
// same session are serialized so interleaved turns keep their order; once the
// write starts it is not cancelled. Unlike reads, a write failure surfaces to
// the caller: silently dropping a turn would corrupt the visible history.
func (c *Coordinator) PersistTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	c.sessionLocks.Lock(sessionID)
	defer c.sessionLocks.Unlock(sessionID)

	return c.turns.Append(context.WithoutCancel(ctx), sessionID, turn)
}

// SetGoal records or updates a procedural goal for the user.
func (c *Coordinator) SetGoal(ctx context.Context, goal *models.Goal) error {
	if goal.UpdatedAt.IsZero() {
		goal.UpdatedAt = time.Now()
	}
	return c.goals.Set(context.WithoutCancel(ctx), goal)
}

// ExtractAndStoreFacts runs fact extraction over a finished conversation
// slice and upserts each candidate into the semantic index. Candidates fail
// independently: one bad embedding or insert is logged and skipped, the rest
// still land. Returns the number of candidates actually stored (duplicates
// resolved to an existing fact count as stored).
func (c *Coordinator) ExtractAndStoreFacts(ctx context.Context, slice models.ConversationSlice) (int, error) {
	candidates, err := c.extractor.Extract(ctx, slice)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, text := range candidates {
		fact := &models.Fact{
			UserID:    slice.UserID,
			Text:      text,
			Source:    "conversation",
			Metadata:  map[string]string{"session_id": slice.SessionID},
			CreatedAt: time.Now(),
		}
		if _, err := c.semantic.Upsert(ctx, fact); err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
				"user_id":   slice.UserID,
				"candidate": text,
			}).Warn("fact upsert failed, skipping candidate")
			continue
		}
		stored++
	}

	c.logger.WithPayload(map[string]interface{}{
		"session_id": slice.SessionID,
		"candidates": len(candidates),
		"stored":     stored,
	}).Info("fact extraction finished")
	return stored, nil
}

// Stats reports what the tiers currently hold for a session/user pair.
func (c *Coordinator) Stats(ctx context.Context, sessionID, userID string) (*models.MemoryStats, error) {
	historyTurns, err := c.turns.Len(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	facts, err := c.semantic.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	goals, err := c.goals.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.MemoryStats{
		SessionID:    sessionID,
		UserID:       userID,
		HistoryTurns: historyTurns,
		Facts:        facts,
		Goals:        len(goals),
	}, nil
}

// ClearSession drops the episodic log for a session. Idempotent.
func (c *Coordinator) ClearSession(ctx context.Context, sessionID string) error {
	c.sessionLocks.Lock(sessionID)
	defer c.sessionLocks.Unlock(sessionID)
	return c.turns.Clear(context.WithoutCancel(ctx), sessionID)
}

// ClearUserFacts drops every semantic fact for a user, typically before a
// ground-truth reload.
func (c *Coordinator) ClearUserFacts(ctx context.Context, userID string) error {
	return c.semantic.Clear(ctx, userID)
}
