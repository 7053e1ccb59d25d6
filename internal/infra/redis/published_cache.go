package redis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"therapist-match-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PublishedLoader fetches the live draft of a quiz from the backing store.
type PublishedLoader interface {
	PublishedDraft(ctx context.Context, quizID int64) (domain.Draft, error)
}

// PublishedCache caches published drafts in Redis (hash per quiz) and falls back to a
// loader on cache miss. Layout:
//
//	HSET quiz:{quizID}:published id {draftID} name {name} author {author} created_at {unix nanos} data {snapshot json}
//	INCR quiz:{quizID}:published:gen   on Invalidate
//	INCR quiz:published:epoch          on Purge
type PublishedCache struct {
	client *redis.Client
	loader PublishedLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewPublishedCache(client *redis.Client, loader PublishedLoader, ttl time.Duration) *PublishedCache {
	return &PublishedCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PublishedCache) GetPublished(ctx context.Context, quizID int64) (domain.Draft, error) {
	key := publishedKey(quizID)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		if draft, err := draftFromCache(quizID, fields); err == nil {
			return draft, nil
		}
	}

	// A fill only lands if neither Invalidate nor Purge ran since the versions were read.
	token, verr := versions(ctx, c.client, quizID)

	result, err, _ := c.sf.Do(key+"@"+token, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			if draft, err := draftFromCache(quizID, fields); err == nil {
				return draft, nil
			}
		}

		draft, err := c.loader.PublishedDraft(ctx, quizID)
		if err != nil {
			return domain.Draft{}, err
		}
		if verr != nil {
			return draft, nil
		}

		data, err := domain.EncodeSnapshot(draft.Data)
		if err != nil {
			return domain.Draft{}, err
		}
		// A failed or aborted fill only costs another load.
		_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := versions(ctx, tx, quizID)
			if err != nil {
				return err
			}
			if current != token {
				return errStaleFill
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.HSet(ctx, key,
					"id", draft.ID,
					"name", draft.Name,
					"author", draft.Author,
					"created_at", draft.CreatedAt.UnixNano(),
					"data", data,
				)
				if ttl := c.ttlWithJitter(); ttl > 0 {
					pipe.Expire(ctx, key, ttl)
				}
				return nil
			})
			return err
		}, generationKey(quizID), purgeEpochKey)

		return draft, nil
	})
	if err != nil {
		return domain.Draft{}, err
	}
	return result.(domain.Draft), nil
}

// Invalidate bumps the quiz generation before dropping the hash, so an in-flight fill
// that loaded the old draft is refused.
func (c *PublishedCache) Invalidate(ctx context.Context, quizID int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(quizID))
		pipe.Del(ctx, publishedKey(quizID))
		return nil
	})
	return err
}

// Purge drops every cached published draft.
func (c *PublishedCache) Purge(ctx context.Context) error {
	if err := c.client.Incr(ctx, purgeEpochKey).Err(); err != nil {
		return fmt.Errorf("bump published cache epoch: %w", err)
	}
	iter := c.client.Scan(ctx, 0, "quiz:*:published", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan published cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// versions reads the quiz generation and the purge epoch as one token.
func versions(ctx context.Context, rdb redis.Cmdable, quizID int64) (string, error) {
	values, err := rdb.MGet(ctx, generationKey(quizID), purgeEpochKey).Result()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		if str, ok := v.(string); ok {
			parts[i] = str
		}
	}
	return strings.Join(parts, ":"), nil
}

const purgeEpochKey = "quiz:published:epoch"

var errStaleFill = errors.New("published draft changed during fill")

func publishedKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":published"
}

func generationKey(quizID int64) string {
	return publishedKey(quizID) + ":gen"
}

func draftFromCache(quizID int64, fields map[string]string) (domain.Draft, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("cached draft id: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("cached draft created_at: %w", err)
	}
	data, err := domain.DecodeSnapshot([]byte(fields["data"]))
	if err != nil {
		return domain.Draft{}, err
	}
	return domain.Draft{
		ID:        id,
		QuizID:    quizID,
		Name:      fields["name"],
		Author:    fields["author"],
		Data:      data,
		CreatedAt: time.Unix(0, created).UTC(),
	}, nil
}

func (c *PublishedCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
