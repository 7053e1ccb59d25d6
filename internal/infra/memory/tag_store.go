package memory

import (
	"context"
	"sort"
	"sync"

	"therapist-match-service/internal/domain"
)

// TagStore is an in-memory tag list with unique names.
type TagStore struct {
	mu     sync.RWMutex
	nextID domain.TagID
	tags   map[domain.TagID]domain.Tag
}

func NewTagStore() *TagStore {
	return &TagStore{tags: make(map[domain.TagID]domain.Tag)}
}

func (s *TagStore) ListTags(_ context.Context) ([]domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *TagStore) GetTag(_ context.Context, id domain.TagID) (domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[id]
	if !ok {
		return domain.Tag{}, domain.ErrTagNotFound
	}
	return t, nil
}

func (s *TagStore) CreateTag(_ context.Context, name string) (domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTakenLocked(name, 0) {
		return domain.Tag{}, domain.ErrDuplicateName
	}
	s.nextID++
	t := domain.Tag{ID: s.nextID, Name: name}
	s.tags[t.ID] = t
	return t, nil
}

func (s *TagStore) UpdateTag(_ context.Context, id domain.TagID, name string) (domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return domain.Tag{}, domain.ErrTagNotFound
	}
	if s.nameTakenLocked(name, id) {
		return domain.Tag{}, domain.ErrDuplicateName
	}
	t.Name = name
	s.tags[id] = t
	return t, nil
}

func (s *TagStore) DeleteTag(_ context.Context, id domain.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id]; !ok {
		return domain.ErrTagNotFound
	}
	delete(s.tags, id)
	return nil
}

func (s *TagStore) nameTakenLocked(name string, exceptID domain.TagID) bool {
	for _, t := range s.tags {
		if t.Name == name && t.ID != exceptID {
			return true
		}
	}
	return false
}
