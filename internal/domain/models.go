package domain

import (
	"sort"
	"time"
)

// TagID identifies a tag. Tags are referenced by id from therapist profiles and quiz
// content without any storage-level referential integrity.
type TagID int64

// Tag is the authoritative tag record.
type Tag struct {
	ID   TagID  `json:"id"`
	Name string `json:"name"`
}

// Therapist is a therapist profile together with its tag associations.
type Therapist struct {
	ID             int64   `json:"id"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	Specialization string  `json:"specialization"`
	Description    string  `json:"description,omitempty"`
	Tags           []TagID `json:"tags"`
}

// Ref returns the lightweight reference used in usage reports.
func (t Therapist) Ref() TherapistRef {
	return TherapistRef{ID: t.ID, Name: t.FirstName + " " + t.LastName}
}

// TherapistRef points at a therapist referencing a tag.
type TherapistRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Quiz carries the single pointer to its live draft.
type Quiz struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	PublishedDraftID *int64 `json:"publishedDraftId"`
}

// IsPublished reports whether draftID is the quiz's live draft.
func (q Quiz) IsPublished(draftID int64) bool {
	return q.PublishedDraftID != nil && *q.PublishedDraftID == draftID
}

// Draft is a named, authored snapshot of quiz content.
type Draft struct {
	ID        int64     `json:"id"`
	QuizID    int64     `json:"quizId"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	Data      Snapshot  `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuestionRef locates a question referencing a tag.
type QuestionRef struct {
	QuizID  int64  `json:"quizId"`
	DraftID int64  `json:"draftId"`
	QIdx    int    `json:"qIdx"`
	Text    string `json:"text"`
}

// AnswerRef locates an answer referencing a tag.
type AnswerRef struct {
	QuizID  int64  `json:"quizId"`
	DraftID int64  `json:"draftId"`
	QIdx    int    `json:"qIdx"`
	AIdx    int    `json:"aIdx"`
	QText   string `json:"qText"`
	AText   string `json:"aText"`
}

// Usage sources reported by the usage resolver.
const (
	SourceTherapists = "therapists"
	SourcePublished  = "published"
	SourceDrafts     = "drafts"
)

// TagUsage lists every place a tag is referenced. Unresolved names the sources that
// could not be queried; a usage with unresolved sources must not be read as "unused".
type TagUsage struct {
	TagID      TagID          `json:"tagId"`
	Therapists []TherapistRef `json:"therapists"`
	Questions  []QuestionRef  `json:"questions"`
	Answers    []AnswerRef    `json:"answers"`
	Unresolved []string       `json:"unresolved,omitempty"`
}

// InUse reports whether any resolved source references the tag.
func (u TagUsage) InUse() bool {
	return len(u.Therapists) > 0 || len(u.Questions) > 0 || len(u.Answers) > 0
}

// Complete reports whether every queried source answered.
func (u TagUsage) Complete() bool {
	return len(u.Unresolved) == 0
}

// TherapistMatch is one entry of a ranked matching result.
type TherapistMatch struct {
	Therapist  Therapist `json:"therapist"`
	MatchScore int       `json:"matchScore"`
}

// CascadeState is a step of the tag deletion saga.
type CascadeState string

const (
	CascadeUsageResolved CascadeState = "usage_resolved"
	CascadeInProgress    CascadeState = "cascading"
	CascadeConfirmed     CascadeState = "confirmed"
	CascadeTagDeleted    CascadeState = "deleted"
)

// CascadeRecord is the journaled progress of one tag deletion.
type CascadeRecord struct {
	TagID     TagID        `json:"tagId"`
	RunID     string       `json:"runId"`
	State     CascadeState `json:"state"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Attempt is an end user's in-progress pass through a published draft. Choices maps a
// question id to the chosen answer id.
type Attempt struct {
	ID        string          `json:"id"`
	QuizID    int64           `json:"quizId"`
	DraftID   int64           `json:"draftId"`
	Choices   map[int64]int64 `json:"choices"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AnswerIDs returns the chosen answers ordered by question id.
func (a Attempt) AnswerIDs() []int64 {
	questions := make([]int64, 0, len(a.Choices))
	for q := range a.Choices {
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i] < questions[j] })
	out := make([]int64, 0, len(questions))
	for _, q := range questions {
		out = append(out, a.Choices[q])
	}
	return out
}

// Progress reports how many questions of an attempt have an answer.
type Progress struct {
	AttemptID string `json:"attemptId"`
	Answered  int    `json:"answered"`
	Total     int    `json:"total"`
}
