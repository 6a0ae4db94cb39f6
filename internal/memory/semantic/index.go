package semantic

import (
	"context"
	"sort"
	"time"

	"Mnemo/internal/embedding"
	"Mnemo/internal/memory/store"
	"Mnemo/internal/models"
	"Mnemo/pkg/logger"
	"Mnemo/pkg/util"

	"github.com/google/uuid"
)

// Index is the semantic tier: a deduplicated, per-user store of embedded
// facts with similarity retrieval. Near-duplicate insertion is idempotent:
// a fact whose embedding is too close to an already-stored fact for the same
// user is discarded, first writer kept. Without this the same fact,
// rephrased slightly, accumulates and pollutes retrieval ranking.
type Index struct {
	store          store.FactStore
	embedder       embedding.Embedding
	dedupThreshold float32
	userLocks      *util.KeyedMutex
	logger         *logger.Logger
}

// NewIndex creates a semantic index over a fact store.
func NewIndex(facts store.FactStore, embedder embedding.Embedding, dedupThreshold float64, log *logger.Logger) *Index {
	return &Index{
		store:          facts,
		embedder:       embedder,
		dedupThreshold: float32(dedupThreshold),
		userLocks:      util.NewKeyedMutex(),
		logger:         log,
	}
}

// Upsert stores the fact unless a near-duplicate already exists for the same
// user, and returns the ID of the retained fact (existing or new). The
// check-then-insert runs under a per-user lock so two concurrent
// near-duplicate inserts cannot both succeed. The fact may carry a
// precomputed embedding; otherwise one is computed here.
func (ix *Index) Upsert(ctx context.Context, fact *models.Fact) (string, error) {
	if len(fact.Vector) == 0 {
		vec, err := ix.embedder.Embed(ctx, fact.Text)
		if err != nil {
			return "", err
		}
		fact.Vector = vec
	}
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}

	ix.userLocks.Lock(fact.UserID)
	defer ix.userLocks.Unlock(fact.UserID)

	nearest, err := ix.store.Search(ctx, fact.UserID, fact.Vector, 1)
	if err != nil {
		return "", err
	}
	if len(nearest) > 0 && nearest[0].Similarity >= ix.dedupThreshold {
		ix.logger.WithPayload(map[string]interface{}{
			"user_id":     fact.UserID,
			"existing_id": nearest[0].Fact.ID,
			"similarity":  nearest[0].Similarity,
		}).Debug("near-duplicate fact discarded")
		return nearest[0].Fact.ID, nil
	}

	// Once the insert starts it runs to completion even if the caller goes
	// away; a half-cancelled write is worse than a slightly late one.
	if err := ix.store.Insert(context.WithoutCancel(ctx), fact); err != nil {
		return "", err
	}
	return fact.ID, nil
}

// Query returns up to topK facts with similarity >= minSimilarity, ranked by
// descending similarity; ties go to the more recently created fact. An empty
// result is a normal outcome, not an error.
func (ix *Index) Query(ctx context.Context, userID string, vector []float32, topK int, minSimilarity float64) ([]models.ScoredFact, error) {
	hits, err := ix.store.Search(ctx, userID, vector, topK)
	if err != nil {
		return nil, err
	}

	floor := float32(minSimilarity)
	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Similarity >= floor {
			filtered = append(filtered, hit)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].Fact.CreatedAt.After(filtered[j].Fact.CreatedAt)
	})

	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// Count returns the number of facts stored for the user.
func (ix *Index) Count(ctx context.Context, userID string) (int, error) {
	return ix.store.Count(ctx, userID)
}

// Clear deletes all facts for a user. Called when upstream ground-truth data
// is reloaded, so stale facts cannot be recalled. Idempotent.
func (ix *Index) Clear(ctx context.Context, userID string) error {
	ix.userLocks.Lock(userID)
	defer ix.userLocks.Unlock(userID)
	return ix.store.Clear(context.WithoutCancel(ctx), userID)
}
