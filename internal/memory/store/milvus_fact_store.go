package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Mnemo/internal/database/milvus"
	"Mnemo/internal/models"
	"Mnemo/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusFactStore is a FactStore backed by a Milvus collection with a COSINE
// vector index. Facts are scoped per user with an expression filter, so one
// user's search never sees another user's facts.
type MilvusFactStore struct {
	client *milvus.MilvusClient
	logger *logger.Logger
}

// NewMilvusFactStore creates a MilvusFactStore over an initialized client.
// The collection must have been created via EnsureCollection beforehand.
func NewMilvusFactStore(client *milvus.MilvusClient, log *logger.Logger) *MilvusFactStore {
	return &MilvusFactStore{client: client, logger: log}
}

func userExpr(userID string) string {
	return fmt.Sprintf(`user_id == "%s"`, userID)
}

// Insert stores a fact with its embedding.
func (s *MilvusFactStore) Insert(ctx context.Context, fact *models.Fact) error {
	metadata, err := json.Marshal(fact.Metadata)
	if err != nil {
		return err
	}

	collName := s.client.Config.Schema.CollectionName
	dim := int64(len(fact.Vector))

	idCol := entity.NewColumnVarChar("id", []string{fact.ID})
	userCol := entity.NewColumnVarChar("user_id", []string{fact.UserID})
	textCol := entity.NewColumnVarChar("text", []string{fact.Text})
	sourceCol := entity.NewColumnVarChar("source", []string{fact.Source})
	metaCol := entity.NewColumnVarChar("metadata", []string{string(metadata)})
	createdCol := entity.NewColumnInt64("created_at", []int64{fact.CreatedAt.UnixNano()})
	vecCol := entity.NewColumnFloatVector(s.client.Config.Schema.VectorField, int(dim), [][]float32{fact.Vector})

	return withRetry(ctx, func() error {
		_, err := s.client.Client.Insert(ctx, collName, "", idCol, userCol, textCol, sourceCol, metaCol, createdCol, vecCol)
		return err
	})
}

// Search runs a vector similarity search filtered to the user's facts and
// returns scored results, highest similarity first. A record whose payload
// cannot be decoded is skipped with a log line.
func (s *MilvusFactStore) Search(ctx context.Context, userID string, vector []float32, topK int) ([]models.ScoredFact, error) {
	collName := s.client.Config.Schema.CollectionName
	metricType := entity.MetricType(s.client.Config.Schema.Index.MetricType)
	sp, _ := entity.NewIndexIvfFlatSearchParam(10)

	var hits []models.ScoredFact
	err := withRetry(ctx, func() error {
		results, err := s.client.Client.Search(
			ctx,
			collName,
			nil,
			userExpr(userID),
			[]string{"id", "user_id", "text", "source", "metadata", "created_at"},
			[]entity.Vector{entity.FloatVector(vector)},
			s.client.Config.Schema.VectorField,
			metricType,
			topK,
			sp,
		)
		if err != nil {
			return err
		}

		hits = hits[:0]
		for _, result := range results {
			for i := 0; i < result.ResultCount; i++ {
				fact, err := s.decodeHit(result.Fields, result.IDs, i)
				if err != nil {
					s.logger.WithError(models.ErrorInfo{
						Message: err.Error(),
						Type:    "store_error",
					}).Warn("skipping corrupt fact record")
					continue
				}
				hits = append(hits, models.ScoredFact{
					Fact:       fact,
					Similarity: result.Scores[i],
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *MilvusFactStore) decodeHit(fields []entity.Column, ids entity.Column, i int) (*models.Fact, error) {
	id, err := ids.GetAsString(i)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	byName := make(map[string]entity.Column, len(fields))
	for _, col := range fields {
		byName[col.Name()] = col
	}

	getString := func(name string) string {
		col, ok := byName[name]
		if !ok {
			return ""
		}
		v, _ := col.GetAsString(i)
		return v
	}

	fact := &models.Fact{
		ID:     id,
		UserID: getString("user_id"),
		Text:   getString("text"),
		Source: getString("source"),
	}

	if raw := getString("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fact.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrCorruptRecord, err)
		}
	}

	if col, ok := byName["created_at"]; ok {
		ns, err := col.GetAsInt64(i)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at: %v", ErrCorruptRecord, err)
		}
		fact.CreatedAt = time.Unix(0, ns)
	}

	return fact, nil
}

// Count returns the number of facts stored for the user.
func (s *MilvusFactStore) Count(ctx context.Context, userID string) (int, error) {
	collName := s.client.Config.Schema.CollectionName

	var count int
	err := withRetry(ctx, func() error {
		rs, err := s.client.Client.Query(ctx, collName, nil, userExpr(userID), []string{"id"})
		if err != nil {
			return err
		}
		count = 0
		for _, col := range rs {
			if col.Name() == "id" {
				count = col.Len()
			}
		}
		return nil
	})
	return count, err
}

// Clear deletes every fact belonging to the user. Used when upstream ground
// truth is reimported, so stale facts cannot be recalled afterwards.
func (s *MilvusFactStore) Clear(ctx context.Context, userID string) error {
	collName := s.client.Config.Schema.CollectionName
	return withRetry(ctx, func() error {
		return s.client.Client.Delete(ctx, collName, "", userExpr(userID))
	})
}
