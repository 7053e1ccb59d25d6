package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"therapist-match-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const cascadesKey = "tags:cascades"

// CascadeJournal keeps the latest saga record per tag in one hash so a restarted
// process can resume unfinished deletions:
//
//	HSET tags:cascades {tagID} {record json}
//
// Records in the deleted state are removed instead of stored.
type CascadeJournal struct {
	client *redis.Client
}

func NewCascadeJournal(client *redis.Client) *CascadeJournal {
	return &CascadeJournal{client: client}
}

func (j *CascadeJournal) Record(ctx context.Context, rec domain.CascadeRecord) error {
	field := strconv.FormatInt(int64(rec.TagID), 10)
	if rec.State == domain.CascadeTagDeleted {
		return j.client.HDel(ctx, cascadesKey, field).Err()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.client.HSet(ctx, cascadesKey, field, raw).Err()
}

func (j *CascadeJournal) Pending(ctx context.Context) ([]domain.CascadeRecord, error) {
	entries, err := j.client.HGetAll(ctx, cascadesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read cascade journal: %w", err)
	}
	out := make([]domain.CascadeRecord, 0, len(entries))
	for field, raw := range entries {
		var rec domain.CascadeRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode cascade record %s: %w", field, err)
		}
		if rec.State != domain.CascadeTagDeleted {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out, nil
}
