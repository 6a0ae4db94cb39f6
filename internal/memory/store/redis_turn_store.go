package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"Mnemo/internal/models"
	"Mnemo/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const turnKeyPrefix = "mnemo:session:"

// RedisTurnStore is a TurnStore backed by Redis lists. Each session maps to
// one list key; RPUSH+LTRIM keeps the FIFO bound and EXPIRE carries the
// session TTL, refreshed on every append. Expired sessions simply read as
// missing keys.
type RedisTurnStore struct {
	client   *redis.Client
	maxTurns int
	ttl      time.Duration
	logger   *logger.Logger
}

// NewRedisTurnStore creates a RedisTurnStore with the given bound and TTL.
func NewRedisTurnStore(client *redis.Client, maxTurns int, ttl time.Duration, log *logger.Logger) *RedisTurnStore {
	return &RedisTurnStore{
		client:   client,
		maxTurns: maxTurns,
		ttl:      ttl,
		logger:   log,
	}
}

func turnKey(sessionID string) string {
	return turnKeyPrefix + sessionID + ":turns"
}

// Append pushes the turn, trims the list to the bound and refreshes the TTL
// in a single pipeline. Trimming never fails the append.
func (s *RedisTurnStore) Append(ctx context.Context, sessionID string, turn models.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	key := turnKey(sessionID)
	return withRetry(ctx, func() error {
		pipe := s.client.TxPipeline()
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
		pipe.Expire(ctx, key, s.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// History reads the most recent limit turns in chronological order. A miss
// (unknown or expired session) returns an empty slice. A single undecodable
// entry is skipped with a log line rather than failing the read.
func (s *RedisTurnStore) History(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var raw []string
	err := withRetry(ctx, func() error {
		var err error
		raw, err = s.client.LRange(ctx, turnKey(sessionID), int64(-limit), -1).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	turns := make([]models.Turn, 0, len(raw))
	for _, entry := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			s.logger.WithError(models.ErrorInfo{
				Message: errors.Join(ErrCorruptRecord, err).Error(),
				Type:    "store_error",
			}).Warn("skipping corrupt turn record")
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Len returns the current turn count for the session.
func (s *RedisTurnStore) Len(ctx context.Context, sessionID string) (int, error) {
	var n int64
	err := withRetry(ctx, func() error {
		var err error
		n, err = s.client.LLen(ctx, turnKey(sessionID)).Result()
		return err
	})
	return int(n), err
}

// Clear deletes the session's turn list. Deleting a missing key is a no-op.
func (s *RedisTurnStore) Clear(ctx context.Context, sessionID string) error {
	return withRetry(ctx, func() error {
		return s.client.Del(ctx, turnKey(sessionID)).Err()
	})
}
