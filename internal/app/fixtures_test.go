package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/domain"
	"therapist-match-service/internal/infra/memory"
)

type testEnv struct {
	quizzes    *memory.QuizStore
	tags       *memory.TagStore
	therapists *memory.TherapistIndex
	journal    *memory.CascadeJournal
	cache      *memory.PublishedCache

	drafts   *app.DraftService
	tagsSvc  *app.TagService
	matches  *app.MatchService
	attempts *app.AttemptService
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		quizzes:    memory.NewQuizStore(),
		tags:       memory.NewTagStore(),
		therapists: memory.NewTherapistIndex(),
		journal:    memory.NewCascadeJournal(),
	}
	env.cache = memory.NewPublishedCache(env.quizzes, time.Minute)
	env.drafts = app.NewDraftService(env.quizzes, env.quizzes, env.cache, logger)
	env.tagsSvc = app.NewTagService(env.tags, env.therapists, env.quizzes, env.cache, env.journal, time.Second, logger)
	env.matches = app.NewMatchService(env.cache, env.therapists, logger)
	env.attempts = app.NewAttemptService(memory.NewAttemptStore(), env.matches, logger)
	return env
}

func (e *testEnv) tag(t *testing.T, name string) domain.Tag {
	t.Helper()
	tag, err := e.tagsSvc.CreateTag(context.Background(), name)
	if err != nil {
		t.Fatalf("create tag %s: %v", name, err)
	}
	return tag
}

func (e *testEnv) quiz(t *testing.T) domain.Quiz {
	t.Helper()
	quiz, err := e.drafts.CreateQuiz(context.Background(), "Find your therapist", "")
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

// publishOneQuestion publishes a quiz with a single question whose answers carry the
// given tags, one answer per tag.
func (e *testEnv) publishOneQuestion(t *testing.T, tags ...domain.TagID) (domain.Quiz, domain.Draft) {
	t.Helper()
	quiz := e.quiz(t)
	answers := make([]domain.Answer, 0, len(tags))
	for i, tag := range tags {
		answers = append(answers, domain.Answer{Text: "answer", Order: i + 1, Tags: []domain.TagID{tag}})
	}
	snapshot := domain.Snapshot{Questions: []domain.Question{{Text: "What brings you here?", Order: 1, Answers: answers}}}
	draft, err := e.drafts.CreateDraft(context.Background(), quiz.ID, "v1", "ania", snapshot)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := e.drafts.Publish(context.Background(), quiz.ID, draft.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return quiz, draft
}

func twoQuestions(a, b domain.TagID) domain.Snapshot {
	return domain.Snapshot{Questions: []domain.Question{
		{Text: "Main concern?", Order: 1, Answers: []domain.Answer{
			{Text: "Worry", Order: 1, Tags: []domain.TagID{a}},
			{Text: "Low mood", Order: 2, Tags: []domain.TagID{b}},
		}},
		{Text: "How long?", Order: 2, Answers: []domain.Answer{
			{Text: "Weeks", Order: 1},
			{Text: "Years", Order: 2, Tags: []domain.TagID{a, b}},
		}},
	}}
}
