// Package editor models an admin's editing session over one quiz draft: a working
// snapshot, the last saved version and the Clean/Dirty/Saving lifecycle around it.
package editor

import (
	"context"
	"errors"
	"sync"

	"therapist-match-service/internal/domain"
	"github.com/google/uuid"
)

// State is the lifecycle position of an editing session.
type State int

const (
	Clean State = iota
	Dirty
	Saving
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsavedChanges is returned when leaving a dirty session without confirmation.
	ErrUnsavedChanges = errors.New("unsaved changes")
	// ErrSaveInProgress is returned for edits, saves or navigation while a save is pending.
	ErrSaveInProgress = errors.New("save in progress")
	// ErrNotSaving is returned when completing a save that was never started.
	ErrNotSaving = errors.New("no save in progress")
)

// Drafts is the draft workflow an editing session saves through.
type Drafts interface {
	CreateDraft(ctx context.Context, quizID int64, name, author string, snapshot domain.Snapshot) (domain.Draft, error)
	OverwriteDraft(ctx context.Context, quizID, draftID int64, name, author string, snapshot domain.Snapshot) (domain.Draft, error)
	IsPublished(ctx context.Context, quizID, draftID int64) (bool, error)
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	quizID    int64
	draftID   int64
	name      string
	working   domain.Snapshot
	saved     domain.Snapshot
	published *domain.Snapshot
	state     State
	localID   func() string
}

// New starts a session over an empty, never-saved quiz.
func New(quizID int64) *Session {
	return &Session{quizID: quizID, localID: newLocalID}
}

// Open starts a session over a saved draft. published is the quiz's live snapshot, nil
// when nothing is published.
func Open(draft domain.Draft, published *domain.Snapshot) *Session {
	s := &Session{
		quizID:  draft.QuizID,
		draftID: draft.ID,
		name:    draft.Name,
		working: draft.Data.Clone(),
		saved:   draft.Data.Clone(),
		localID: newLocalID,
	}
	s.setPublishedLocked(published)
	return s
}

func newLocalID() string {
	return "local-" + uuid.NewString()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DraftID is 0 until the session's content is saved for the first time.
func (s *Session) DraftID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

// Name is the saved draft's name, empty until the first save.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Snapshot returns a copy of the working content.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

// SetPublished refreshes the live snapshot used by DiffersFromPublished.
func (s *Session) SetPublished(published *domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPublishedLocked(published)
}

func (s *Session) setPublishedLocked(published *domain.Snapshot) {
	if published == nil {
		s.published = nil
		return
	}
	c := published.Clone()
	s.published = &c
}

// Dirty compares encodings, so any byte-level difference from the saved version counts.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !domain.SameEncoding(s.working, s.saved)
}

// DiffersFromPublished compares structure only. With nothing published it is true.
func (s *Session) DiffersFromPublished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == nil {
		return true
	}
	return !domain.Equal(s.working, *s.published)
}

// UntaggedAnswers lists answers that will never influence matching.
func (s *Session) UntaggedAnswers() [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.UntaggedAnswers()
}

// Edit applies fn to a copy of the working snapshot and keeps the result only when fn
// succeeds.
func (s *Session) Edit(fn func(*domain.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saving {
		return ErrSaveInProgress
	}
	next := s.working.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.working = next
	s.refreshLocked()
	return nil
}

// AddQuestion appends an unsaved question with a local placeholder id.
func (s *Session) AddQuestion(text string) (int, error) {
	var idx int
	err := s.Edit(func(snap *domain.Snapshot) error {
		idx = snap.AddQuestion(domain.Question{LocalID: s.localID(), Text: text})
		return nil
	})
	return idx, err
}

func (s *Session) AddAnswer(qIdx int, text string, tags ...domain.TagID) (int, error) {
	var idx int
	err := s.Edit(func(snap *domain.Snapshot) error {
		var err error
		idx, err = snap.AddAnswer(qIdx, domain.Answer{Text: text, Tags: tags})
		return err
	})
	return idx, err
}

func (s *Session) refreshLocked() {
	if domain.SameEncoding(s.working, s.saved) {
		s.state = Clean
	} else {
		s.state = Dirty
	}
}

// BeginSave moves the session to Saving and returns the content to persist.
func (s *Session) BeginSave() (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saving {
		return domain.Snapshot{}, ErrSaveInProgress
	}
	s.state = Saving
	return s.working.Clone(), nil
}

// SaveSucceeded adopts the stored draft, with its assigned ids, as the saved version.
func (s *Session) SaveSucceeded(draft domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Saving {
		return ErrNotSaving
	}
	s.draftID = draft.ID
	s.name = draft.Name
	s.working = draft.Data.Clone()
	s.saved = draft.Data.Clone()
	s.state = Clean
	return nil
}

// SaveFailed returns to Dirty and keeps the working content.
func (s *Session) SaveFailed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Saving {
		return ErrNotSaving
	}
	s.state = Dirty
	return nil
}

// Discard reverts the working content to the saved version.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saving {
		return ErrSaveInProgress
	}
	s.working = s.saved.Clone()
	s.state = Clean
	return nil
}

// Navigate guards leaving the session, e.g. switching to another draft. A confirmed
// navigation away from a dirty session discards the changes.
func (s *Session) Navigate(confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == Saving:
		return ErrSaveInProgress
	case s.state == Dirty && !confirm:
		return ErrUnsavedChanges
	}
	s.working = s.saved.Clone()
	s.state = Clean
	return nil
}

// Save persists the working content. With asNew, or when the session was never saved,
// a new draft named name is created; otherwise the session's draft is overwritten after
// re-reading whether it went live in the meantime.
func (s *Session) Save(ctx context.Context, drafts Drafts, name, author string, asNew bool) (domain.Draft, error) {
	snapshot, err := s.BeginSave()
	if err != nil {
		return domain.Draft{}, err
	}
	quizID, draftID := s.ids()

	var saved domain.Draft
	if asNew || draftID == 0 {
		saved, err = drafts.CreateDraft(ctx, quizID, name, author, snapshot)
	} else {
		var live bool
		live, err = drafts.IsPublished(ctx, quizID, draftID)
		if err == nil && live {
			err = domain.ErrPublishedDraftImmutable
		}
		if err == nil {
			saved, err = drafts.OverwriteDraft(ctx, quizID, draftID, name, author, snapshot)
		}
	}
	if err != nil {
		_ = s.SaveFailed()
		return domain.Draft{}, err
	}
	if err := s.SaveSucceeded(saved); err != nil {
		return domain.Draft{}, err
	}
	return saved, nil
}

func (s *Session) ids() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quizID, s.draftID
}
