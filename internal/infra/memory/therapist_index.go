package memory

import (
	"context"
	"sort"
	"sync"

	"therapist-match-service/internal/domain"
)

// TherapistIndex keeps therapist profiles and their tag sets in memory.
type TherapistIndex struct {
	mu         sync.RWMutex
	nextID     int64
	therapists map[int64]domain.Therapist
}

func NewTherapistIndex() *TherapistIndex {
	return &TherapistIndex{therapists: make(map[int64]domain.Therapist)}
}

// AddTherapist registers a profile and returns it with its assigned id.
func (x *TherapistIndex) AddTherapist(t domain.Therapist) domain.Therapist {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.nextID++
	t.ID = x.nextID
	t.Tags = append([]domain.TagID{}, t.Tags...)
	x.therapists[t.ID] = t
	return t
}

// Roster returns therapists in id order, which is the tie order of a ranking.
func (x *TherapistIndex) Roster(_ context.Context) ([]domain.Therapist, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.Therapist, 0, len(x.therapists))
	for _, t := range x.therapists {
		t.Tags = append([]domain.TagID{}, t.Tags...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (x *TherapistIndex) TagsOf(_ context.Context, therapistID int64) ([]domain.TagID, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	t, ok := x.therapists[therapistID]
	if !ok {
		return nil, domain.ErrTherapistNotFound
	}
	return append([]domain.TagID{}, t.Tags...), nil
}

func (x *TherapistIndex) TherapistsWithTag(_ context.Context, tagID domain.TagID) ([]domain.TherapistRef, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.TherapistRef, 0)
	for _, t := range x.therapists {
		for _, tag := range t.Tags {
			if tag == tagID {
				out = append(out, t.Ref())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (x *TherapistIndex) RemoveTagFromAll(_ context.Context, tagID domain.TagID) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	removed := 0
	for id, t := range x.therapists {
		kept := t.Tags[:0:0]
		for _, tag := range t.Tags {
			if tag != tagID {
				kept = append(kept, tag)
			}
		}
		if len(kept) != len(t.Tags) {
			removed += len(t.Tags) - len(kept)
			t.Tags = kept
			x.therapists[id] = t
		}
	}
	return removed, nil
}

func (x *TherapistIndex) SetTags(_ context.Context, therapistID int64, tags []domain.TagID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	t, ok := x.therapists[therapistID]
	if !ok {
		return domain.ErrTherapistNotFound
	}
	t.Tags = append([]domain.TagID{}, tags...)
	x.therapists[therapistID] = t
	return nil
}
