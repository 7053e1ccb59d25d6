package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"therapist-match-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PublishedLoader fetches the live draft of a quiz from the backing store.
type PublishedLoader interface {
	PublishedDraft(ctx context.Context, quizID int64) (domain.Draft, error)
}

// PublishedCache caches published drafts with TTL to avoid repeated store hits on
// quiz submissions. Invalidate on publish; Purge after tag cascades.
type PublishedCache struct {
	loader PublishedLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedDraft
	// gens and epoch move on Invalidate and Purge; a fill started under older values
	// is returned to its callers but never stored.
	gens  map[int64]uint64
	epoch uint64
}

type cachedDraft struct {
	draft     domain.Draft
	expiresAt time.Time
}

func NewPublishedCache(loader PublishedLoader, ttl time.Duration) *PublishedCache {
	return &PublishedCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedDraft),
		gens:   make(map[int64]uint64),
	}
}

func (c *PublishedCache) GetPublished(ctx context.Context, quizID int64) (domain.Draft, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return copyDraft(entry.draft), nil
	}
	gen, epoch := c.gens[quizID], c.epoch
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(singleflightKey(quizID, gen, epoch), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.draft, nil
		}
		c.mu.RUnlock()

		draft, err := c.loader.PublishedDraft(ctx, quizID)
		if err != nil {
			return domain.Draft{}, err
		}

		c.mu.Lock()
		if c.gens[quizID] == gen && c.epoch == epoch {
			c.cache[quizID] = cachedDraft{
				draft:     draft,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return draft, nil
	})
	if err != nil {
		return domain.Draft{}, err
	}
	return copyDraft(result.(domain.Draft)), nil
}

func (c *PublishedCache) Invalidate(_ context.Context, quizID int64) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.gens[quizID]++
	c.mu.Unlock()
	return nil
}

func (c *PublishedCache) Purge(_ context.Context) error {
	c.mu.Lock()
	c.cache = make(map[int64]cachedDraft)
	c.epoch++
	c.mu.Unlock()
	return nil
}

func (c *PublishedCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// singleflightKey changes with the generation so callers arriving after an
// invalidation never join a fill that started before it.
func singleflightKey(quizID int64, gen, epoch uint64) string {
	return "published:" + strconv.FormatInt(quizID, 10) +
		":" + strconv.FormatUint(gen, 10) + ":" + strconv.FormatUint(epoch, 10)
}
