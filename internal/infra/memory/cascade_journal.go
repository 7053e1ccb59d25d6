package memory

import (
	"context"
	"sort"
	"sync"

	"therapist-match-service/internal/domain"
)

// CascadeJournal keeps the latest saga record per tag.
type CascadeJournal struct {
	mu      sync.Mutex
	records map[domain.TagID]domain.CascadeRecord
}

func NewCascadeJournal() *CascadeJournal {
	return &CascadeJournal{records: make(map[domain.TagID]domain.CascadeRecord)}
}

func (j *CascadeJournal) Record(_ context.Context, rec domain.CascadeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[rec.TagID] = rec
	return nil
}

func (j *CascadeJournal) Pending(_ context.Context) ([]domain.CascadeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.CascadeRecord, 0)
	for _, rec := range j.records {
		if rec.State != domain.CascadeTagDeleted {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out, nil
}

// Get returns the latest record for a tag.
func (j *CascadeJournal) Get(tagID domain.TagID) (domain.CascadeRecord, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[tagID]
	return rec, ok
}
