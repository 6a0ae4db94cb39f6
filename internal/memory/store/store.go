package store

import (
	"context"
	"errors"

	"Mnemo/internal/models"
)

// ErrStoreUnavailable indicates the backing store could not be reached after
// retries. Reads degrade to cold state at the caller; writes surface this to
// the agent loop.
var ErrStoreUnavailable = errors.New("memory store unavailable")

// ErrCorruptRecord indicates a single stored record could not be decoded.
// Batch reads skip the record and continue.
var ErrCorruptRecord = errors.New("corrupt memory record")

// TurnStore persists the episodic tier: an append-only, bounded,
// expiring turn log per session. Unknown or expired sessions read as empty;
// that is the normal cold-start case, not an error.
type TurnStore interface {
	// Append adds a turn to the session log, refreshes the session expiry,
	// and trims the oldest turns when the configured bound is exceeded.
	Append(ctx context.Context, sessionID string, turn models.Turn) error

	// History returns up to limit most recent turns in chronological order.
	History(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)

	// Len returns the number of turns currently held for the session.
	Len(ctx context.Context, sessionID string) (int, error)

	// Clear deletes the session's turns. Idempotent.
	Clear(ctx context.Context, sessionID string) error
}

// FactStore persists the semantic tier: embedded facts scoped per user.
// Dedup policy lives above this interface, in the semantic index; the store
// only inserts, searches, counts and clears.
type FactStore interface {
	// Insert stores a fact. The fact must carry its embedding.
	Insert(ctx context.Context, fact *models.Fact) error

	// Search returns up to topK facts for the user ranked by descending
	// cosine similarity to the query vector.
	Search(ctx context.Context, userID string, vector []float32, topK int) ([]models.ScoredFact, error)

	// Count returns the number of facts stored for the user.
	Count(ctx context.Context, userID string) (int, error)

	// Clear deletes all facts for a user. Idempotent.
	Clear(ctx context.Context, userID string) error
}

// GoalStore persists the procedural tier: per-user key/value goals.
// Writes are last-write-wins by the goal's UpdatedAt timestamp, not by
// arrival order, so a stale concurrent write never clobbers a newer one.
type GoalStore interface {
	// Set stores or updates a goal under (UserID, Key).
	Set(ctx context.Context, goal *models.Goal) error

	// GetAll returns every goal for the user keyed by goal key.
	GetAll(ctx context.Context, userID string) (map[string]string, error)
}
