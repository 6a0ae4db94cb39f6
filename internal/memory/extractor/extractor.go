package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"Mnemo/internal/llm"
	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
	"Mnemo/pkg/util"
)

// Extractor pulls durable, user-specific facts out of a conversation slice.
// Candidates are plain statements ("prefers morning workouts", "allergic to
// penicillin") suitable for embedding and long-term recall. An empty result
// is normal; most turns carry nothing worth keeping.
type Extractor interface {
	Extract(ctx context.Context, slice models.ConversationSlice) ([]string, error)
}

const extractPrompt = `You extract long-term memory facts from a health assistant conversation.
Return ONLY a JSON array of short English statements about the user that are
worth remembering across sessions (preferences, conditions, goals, constraints).
Ignore greetings, one-off questions, and anything about the assistant itself.
Return [] if there is nothing durable.

Conversation:
%s`

// LLMExtractor asks a language model for candidate facts and parses its
// JSON answer. Malformed output is treated as "no facts", not as an error;
// extraction is best-effort and must never block the conversation path.
type LLMExtractor struct {
	model  llm.LLM
	logger *logger.Logger
}

func NewLLMExtractor(model llm.LLM, log *logger.Logger) *LLMExtractor {
	return &LLMExtractor{model: model, logger: log}
}

func (e *LLMExtractor) Extract(ctx context.Context, slice models.ConversationSlice) ([]string, error) {
	var sb strings.Builder
	for _, turn := range slice.Turns {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	if sb.Len() == 0 {
		return nil, nil
	}

	raw, err := e.model.Generate(ctx, fmt.Sprintf(extractPrompt, sb.String()))
	if err != nil {
		return nil, err
	}

	candidates, ok := parseCandidates(raw)
	if !ok {
		e.logger.WithPayload(map[string]interface{}{
			"session_id": slice.SessionID,
			"raw":        truncate(raw, 200),
		}).Warn("fact extraction returned unparseable output, skipping")
		return nil, nil
	}
	return candidates, nil
}

// parseCandidates accepts a bare JSON array, tolerating the markdown code
// fences some models wrap answers in.
func parseCandidates(raw string) ([]string, bool) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var items []string
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, false
	}
	out := items[:0]
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Deduped wraps an extractor with a bloom filter keyed by user and candidate
// text, dropping candidates this process has already pushed toward storage.
// False positives only cost a skipped re-insert that the semantic index would
// have deduplicated anyway.
type Deduped struct {
	inner Extractor
	seen  *util.BloomFilter
}

func NewDeduped(inner Extractor, capacity uint) *Deduped {
	return &Deduped{inner: inner, seen: util.NewBloomFilter(capacity, 0.01)}
}

func (d *Deduped) Extract(ctx context.Context, slice models.ConversationSlice) ([]string, error) {
	candidates, err := d.inner.Extract(ctx, slice)
	if err != nil {
		return nil, err
	}
	fresh := candidates[:0]
	for _, c := range candidates {
		key := slice.UserID + "\x00" + c
		if d.seen.Contains(key) {
			continue
		}
		d.seen.Add(key)
		fresh = append(fresh, c)
	}
	return fresh, nil
}
