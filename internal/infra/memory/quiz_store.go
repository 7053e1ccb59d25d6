package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"therapist-match-service/internal/domain"
)

// QuizStore is an in-memory quiz, draft and content repository. A single mutex makes
// uniqueness checks, the published-draft guard and the pointer update atomic.
type QuizStore struct {
	mu          sync.RWMutex
	clock       func() time.Time
	nextQuizID  int64
	nextDraftID int64
	quizzes     map[int64]domain.Quiz
	drafts      map[int64]domain.Draft
}

func NewQuizStore() *QuizStore {
	return NewQuizStoreWithClock(time.Now)
}

// NewQuizStoreWithClock allows deterministic createdAt values in tests.
func NewQuizStoreWithClock(now func() time.Time) *QuizStore {
	return &QuizStore{
		clock:   now,
		quizzes: make(map[int64]domain.Quiz),
		drafts:  make(map[int64]domain.Draft),
	}
}

func (s *QuizStore) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuizID++
	quiz.ID = s.nextQuizID
	quiz.PublishedDraftID = nil
	s.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (s *QuizStore) GetQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return copyQuiz(quiz), nil
}

func (s *QuizStore) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		out = append(out, copyQuiz(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *QuizStore) Publish(_ context.Context, quizID, draftID int64) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	draft, ok := s.drafts[draftID]
	if !ok || draft.QuizID != quizID {
		return domain.Quiz{}, domain.ErrDraftNotFound
	}
	id := draftID
	quiz.PublishedDraftID = &id
	s.quizzes[quizID] = quiz
	return copyQuiz(quiz), nil
}

func (s *QuizStore) CreateDraft(_ context.Context, draft domain.Draft) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[draft.QuizID]; !ok {
		return domain.Draft{}, domain.ErrQuizNotFound
	}
	if s.nameTakenLocked(draft.QuizID, draft.Name, 0) {
		return domain.Draft{}, domain.ErrDuplicateName
	}
	s.nextDraftID++
	draft.ID = s.nextDraftID
	draft.CreatedAt = s.clock()
	draft.Data = draft.Data.Clone()
	s.drafts[draft.ID] = draft
	return copyDraft(draft), nil
}

func (s *QuizStore) OverwriteDraft(_ context.Context, draft domain.Draft) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.drafts[draft.ID]
	if !ok || existing.QuizID != draft.QuizID {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	if s.quizzes[draft.QuizID].IsPublished(draft.ID) {
		return domain.Draft{}, domain.ErrPublishedDraftImmutable
	}
	if s.nameTakenLocked(draft.QuizID, draft.Name, draft.ID) {
		return domain.Draft{}, domain.ErrDuplicateName
	}
	existing.Name = draft.Name
	existing.Author = draft.Author
	existing.Data = draft.Data.Clone()
	s.drafts[draft.ID] = existing
	return copyDraft(existing), nil
}

func (s *QuizStore) ListDrafts(_ context.Context, quizID int64) ([]domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Draft, 0)
	for _, d := range s.drafts {
		if d.QuizID == quizID {
			out = append(out, copyDraft(d))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *QuizStore) GetDraft(_ context.Context, quizID, draftID int64) (domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[draftID]
	if !ok || d.QuizID != quizID {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	return copyDraft(d), nil
}

func (s *QuizStore) DeleteDraft(_ context.Context, quizID, draftID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok || d.QuizID != quizID {
		return domain.ErrDraftNotFound
	}
	if s.quizzes[quizID].IsPublished(draftID) {
		return domain.ErrPublishedDraftImmutable
	}
	delete(s.drafts, draftID)
	return nil
}

func (s *QuizStore) PublishedDraft(_ context.Context, quizID int64) (domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Draft{}, domain.ErrQuizNotFound
	}
	if quiz.PublishedDraftID == nil {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	d, ok := s.drafts[*quiz.PublishedDraftID]
	if !ok {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	return copyDraft(d), nil
}

func (s *QuizStore) PublishedDrafts(_ context.Context) ([]domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Draft, 0)
	for _, q := range s.quizzes {
		if q.PublishedDraftID == nil {
			continue
		}
		if d, ok := s.drafts[*q.PublishedDraftID]; ok {
			out = append(out, copyDraft(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *QuizStore) AllDrafts(_ context.Context) ([]domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, copyDraft(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *QuizStore) StripTag(_ context.Context, tagID domain.TagID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id, d := range s.drafts {
		if d.Data.RemoveTag(tagID) {
			s.drafts[id] = d
			changed++
		}
	}
	return changed, nil
}

func (s *QuizStore) nameTakenLocked(quizID int64, name string, exceptID int64) bool {
	for _, d := range s.drafts {
		if d.QuizID == quizID && d.Name == name && d.ID != exceptID {
			return true
		}
	}
	return false
}

func copyQuiz(q domain.Quiz) domain.Quiz {
	if q.PublishedDraftID != nil {
		id := *q.PublishedDraftID
		q.PublishedDraftID = &id
	}
	return q
}

func copyDraft(d domain.Draft) domain.Draft {
	d.Data = d.Data.Clone()
	return d
}

func sortNewestFirst(drafts []domain.Draft) {
	sort.SliceStable(drafts, func(i, j int) bool {
		if !drafts[i].CreatedAt.Equal(drafts[j].CreatedAt) {
			return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
		}
		return drafts[i].ID > drafts[j].ID
	})
}
