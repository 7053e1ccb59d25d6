package app

import (
	"context"

	"therapist-match-service/internal/domain"
)

// QuizRepository stores quiz records and the published-draft pointer.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	// Publish sets the pointer atomically; ErrDraftNotFound if the draft is not the quiz's.
	Publish(ctx context.Context, quizID, draftID int64) (domain.Quiz, error)
}

// DraftRepository stores named snapshots. Implementations enforce name uniqueness per
// quiz and refuse to overwrite or delete the published draft, atomically with the write.
type DraftRepository interface {
	CreateDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error)
	OverwriteDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error)
	ListDrafts(ctx context.Context, quizID int64) ([]domain.Draft, error)
	GetDraft(ctx context.Context, quizID, draftID int64) (domain.Draft, error)
	DeleteDraft(ctx context.Context, quizID, draftID int64) error
	// PublishedDraft returns ErrDraftNotFound when the quiz has nothing published.
	PublishedDraft(ctx context.Context, quizID int64) (domain.Draft, error)
}

// ContentRepository exposes quiz content across all quizzes for tag fan-out.
type ContentRepository interface {
	PublishedDrafts(ctx context.Context) ([]domain.Draft, error)
	AllDrafts(ctx context.Context) ([]domain.Draft, error)
	// StripTag removes tagID from every draft, published ones included, and returns
	// the number of drafts changed. Safe to repeat.
	StripTag(ctx context.Context, tagID domain.TagID) (int, error)
}

// TagRepository is the authoritative tag list.
type TagRepository interface {
	ListTags(ctx context.Context) ([]domain.Tag, error)
	GetTag(ctx context.Context, id domain.TagID) (domain.Tag, error)
	CreateTag(ctx context.Context, name string) (domain.Tag, error)
	UpdateTag(ctx context.Context, id domain.TagID, name string) (domain.Tag, error)
	DeleteTag(ctx context.Context, id domain.TagID) error
}

// TherapistIndex is the therapist <-> tag association.
type TherapistIndex interface {
	Roster(ctx context.Context) ([]domain.Therapist, error)
	TagsOf(ctx context.Context, therapistID int64) ([]domain.TagID, error)
	TherapistsWithTag(ctx context.Context, tagID domain.TagID) ([]domain.TherapistRef, error)
	// RemoveTagFromAll returns the number of associations removed. Safe to repeat.
	RemoveTagFromAll(ctx context.Context, tagID domain.TagID) (int, error)
	SetTags(ctx context.Context, therapistID int64, tags []domain.TagID) error
}

// PublishedCache serves published drafts to the read-heavy matching path.
type PublishedCache interface {
	GetPublished(ctx context.Context, quizID int64) (domain.Draft, error)
	Invalidate(ctx context.Context, quizID int64) error
	Purge(ctx context.Context) error
}

// CascadeJournal persists tag deletion saga progress so it can be replayed.
type CascadeJournal interface {
	Record(ctx context.Context, rec domain.CascadeRecord) error
	Pending(ctx context.Context) ([]domain.CascadeRecord, error)
}

// AttemptRepository stores in-progress quiz attempts (in-memory, Redis, etc).
type AttemptRepository interface {
	SaveAttempt(ctx context.Context, attempt domain.Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	DeleteAttempt(ctx context.Context, attemptID string) error
}
