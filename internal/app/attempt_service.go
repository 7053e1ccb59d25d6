package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"therapist-match-service/internal/domain"
	"github.com/google/uuid"
)

// AttemptService drives quiz-taking: it records one choice per question against the
// live draft and hands the collected answers to matching on submit.
type AttemptService struct {
	attempts AttemptRepository
	matches  *MatchService
	now      func() time.Time
	log      *slog.Logger
}

func NewAttemptService(attempts AttemptRepository, matches *MatchService, logger *slog.Logger) *AttemptService {
	return NewAttemptServiceWithClock(attempts, matches, logger, time.Now)
}

// NewAttemptServiceWithClock takes the clock stamped on attempt updates.
func NewAttemptServiceWithClock(attempts AttemptRepository, matches *MatchService, logger *slog.Logger, now func() time.Time) *AttemptService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptService{attempts: attempts, matches: matches, now: now, log: logger}
}

// Start resumes attemptID when it exists for the same quiz and the same live draft,
// otherwise it opens a fresh attempt. The published draft is returned for rendering.
func (s *AttemptService) Start(ctx context.Context, quizID int64, attemptID string) (domain.Attempt, domain.Draft, error) {
	draft, err := s.matches.Published(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, domain.Draft{}, err
	}

	if attemptID != "" {
		existing, err := s.attempts.GetAttempt(ctx, attemptID)
		switch {
		case err == nil && existing.QuizID == quizID && existing.DraftID == draft.ID:
			return existing, draft, nil
		case err != nil && !errors.Is(err, domain.ErrAttemptNotFound):
			return domain.Attempt{}, domain.Draft{}, err
		}
	}

	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		DraftID:   draft.ID,
		Choices:   make(map[int64]int64),
		UpdatedAt: s.now(),
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, domain.Draft{}, err
	}
	s.log.Debug("attempt started", "quiz_id", quizID, "draft_id", draft.ID, "attempt_id", attempt.ID)
	return attempt, draft, nil
}

// Choose records answerID for questionID, replacing any earlier choice for that question.
func (s *AttemptService) Choose(ctx context.Context, attemptID string, questionID, answerID int64) (domain.Progress, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Progress{}, err
	}
	draft, err := s.pinnedDraft(ctx, attempt)
	if err != nil {
		return domain.Progress{}, err
	}
	if !draft.Data.AnswerOf(questionID, answerID) {
		return domain.Progress{}, domain.Invalid("answer", "answer %d does not belong to question %d", answerID, questionID)
	}

	if attempt.Choices == nil {
		attempt.Choices = make(map[int64]int64)
	}
	attempt.Choices[questionID] = answerID
	attempt.UpdatedAt = s.now()
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.Progress{}, err
	}
	return progressOf(attempt, draft.Data), nil
}

// Progress reports the answered count of an attempt.
func (s *AttemptService) Progress(ctx context.Context, attemptID string) (domain.Progress, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Progress{}, err
	}
	draft, err := s.matches.Published(ctx, attempt.QuizID)
	if err != nil {
		return domain.Progress{}, err
	}
	return progressOf(attempt, draft.Data), nil
}

// Submit ranks therapists for the attempt's choices and closes the attempt.
func (s *AttemptService) Submit(ctx context.Context, attemptID string) ([]domain.TherapistMatch, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	// Answer ids are only meaningful within the draft they were chosen from.
	if _, err := s.pinnedDraft(ctx, attempt); err != nil {
		return nil, err
	}
	matches, err := s.matches.Submit(ctx, attempt.QuizID, attempt.AnswerIDs())
	if err != nil {
		return nil, err
	}
	if err := s.attempts.DeleteAttempt(ctx, attemptID); err != nil {
		s.log.Warn("attempt cleanup failed", "attempt_id", attemptID, "err", err)
	}
	return matches, nil
}

// pinnedDraft returns the live draft, failing when it is no longer the one the attempt
// started on.
func (s *AttemptService) pinnedDraft(ctx context.Context, attempt domain.Attempt) (domain.Draft, error) {
	draft, err := s.matches.Published(ctx, attempt.QuizID)
	if err != nil {
		return domain.Draft{}, err
	}
	if draft.ID != attempt.DraftID {
		return domain.Draft{}, domain.Invalid("attempt", "quiz was republished, restart the attempt")
	}
	return draft, nil
}

func progressOf(attempt domain.Attempt, content domain.Snapshot) domain.Progress {
	return domain.Progress{
		AttemptID: attempt.ID,
		Answered:  len(attempt.Choices),
		Total:     len(content.Questions),
	}
}
