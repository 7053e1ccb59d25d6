package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"therapist-match-service/internal/domain"
)

// DraftService implements the draft/publish workflow.
type DraftService struct {
	quizzes QuizRepository
	drafts  DraftRepository
	cache   PublishedCache
	log     *slog.Logger
}

func NewDraftService(quizzes QuizRepository, drafts DraftRepository, cache PublishedCache, logger *slog.Logger) *DraftService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftService{quizzes: quizzes, drafts: drafts, cache: cache, log: logger}
}

// CreateQuiz registers a quiz with nothing published.
func (s *DraftService) CreateQuiz(ctx context.Context, title, description string) (domain.Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Quiz{}, domain.Invalid("title", "quiz title is required")
	}
	quiz, err := s.quizzes.CreateQuiz(ctx, domain.Quiz{Title: title, Description: strings.TrimSpace(description)})
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.Info("quiz created", "quiz_id", quiz.ID)
	return quiz, nil
}

func (s *DraftService) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

func (s *DraftService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.quizzes.ListQuizzes(ctx)
}

// CreateDraft saves snapshot under a new name.
func (s *DraftService) CreateDraft(ctx context.Context, quizID int64, name, author string, snapshot domain.Snapshot) (domain.Draft, error) {
	draft, err := s.prepare(ctx, quizID, name, author, snapshot)
	if err != nil {
		return domain.Draft{}, err
	}
	created, err := s.drafts.CreateDraft(ctx, draft)
	if err != nil {
		return domain.Draft{}, err
	}
	s.log.Info("draft created", "quiz_id", quizID, "draft_id", created.ID, "name", created.Name, "author", created.Author)
	return created, nil
}

// OverwriteDraft replaces an unpublished draft's name, author and content.
func (s *DraftService) OverwriteDraft(ctx context.Context, quizID, draftID int64, name, author string, snapshot domain.Snapshot) (domain.Draft, error) {
	draft, err := s.prepare(ctx, quizID, name, author, snapshot)
	if err != nil {
		return domain.Draft{}, err
	}
	draft.ID = draftID
	updated, err := s.drafts.OverwriteDraft(ctx, draft)
	if err != nil {
		return domain.Draft{}, err
	}
	s.log.Info("draft overwritten", "quiz_id", quizID, "draft_id", draftID, "name", updated.Name)
	return updated, nil
}

// ListDrafts returns the quiz's drafts, newest first.
func (s *DraftService) ListDrafts(ctx context.Context, quizID int64) ([]domain.Draft, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return s.drafts.ListDrafts(ctx, quizID)
}

func (s *DraftService) GetDraft(ctx context.Context, quizID, draftID int64) (domain.Draft, error) {
	return s.drafts.GetDraft(ctx, quizID, draftID)
}

// DeleteDraft removes an unpublished draft irreversibly.
func (s *DraftService) DeleteDraft(ctx context.Context, quizID, draftID int64) error {
	if err := s.drafts.DeleteDraft(ctx, quizID, draftID); err != nil {
		return err
	}
	s.log.Info("draft deleted", "quiz_id", quizID, "draft_id", draftID)
	return nil
}

// Publish makes draftID the live snapshot. Concurrent publishes are last-writer-wins;
// callers must re-read the quiz to learn what is live.
func (s *DraftService) Publish(ctx context.Context, quizID, draftID int64) (domain.Quiz, error) {
	quiz, err := s.quizzes.Publish(ctx, quizID, draftID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		s.log.Error("invalidate published cache", "quiz_id", quizID, "err", err)
	}
	s.log.Info("draft published", "quiz_id", quizID, "draft_id", draftID)
	return quiz, nil
}

// GetPublished reads the live draft from the store, bypassing the cache. ok is false
// when nothing is published.
func (s *DraftService) GetPublished(ctx context.Context, quizID int64) (domain.Draft, bool, error) {
	draft, err := s.drafts.PublishedDraft(ctx, quizID)
	if errors.Is(err, domain.ErrDraftNotFound) {
		return domain.Draft{}, false, nil
	}
	if err != nil {
		return domain.Draft{}, false, err
	}
	return draft, true, nil
}

// IsPublished re-reads the pointer; never cache its answer across an editing session.
func (s *DraftService) IsPublished(ctx context.Context, quizID, draftID int64) (bool, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}
	return quiz.IsPublished(draftID), nil
}

func (s *DraftService) prepare(ctx context.Context, quizID int64, name, author string, snapshot domain.Snapshot) (domain.Draft, error) {
	name = strings.TrimSpace(name)
	author = strings.TrimSpace(author)
	if name == "" {
		return domain.Draft{}, domain.Invalid("name", "draft name is required")
	}
	if author == "" {
		return domain.Draft{}, domain.Invalid("author", "draft author is required")
	}
	if err := snapshot.Validate(); err != nil {
		return domain.Draft{}, err
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Draft{}, err
	}
	normalized := snapshot.Normalize()
	if untagged := normalized.UntaggedAnswers(); len(untagged) > 0 {
		s.log.Warn("draft has answers without tags", "quiz_id", quizID, "name", name, "count", len(untagged))
	}
	return domain.Draft{QuizID: quizID, Name: name, Author: author, Data: normalized}, nil
}
