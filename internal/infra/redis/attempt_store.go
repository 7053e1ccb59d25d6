package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"therapist-match-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptStore is a Redis implementation of app.AttemptRepository. Attempts are JSON
// values that expire after ttl of inactivity, so abandoned attempts clean themselves up:
//
//	SET quiz:attempt:{attemptID} {attempt json} EX ttl
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, attempt domain.Attempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(attempt.ID), raw, s.ttl).Err()
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	raw, err := s.client.Get(ctx, s.key(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, err
	}
	if attempt.Choices == nil {
		attempt.Choices = make(map[int64]int64)
	}
	return attempt, nil
}

func (s *AttemptStore) DeleteAttempt(ctx context.Context, attemptID string) error {
	return s.client.Del(ctx, s.key(attemptID)).Err()
}

func (s *AttemptStore) key(attemptID string) string {
	return "quiz:attempt:" + attemptID
}
