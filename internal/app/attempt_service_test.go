package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/domain"
	"therapist-match-service/internal/infra/memory"
)

func TestAttemptChooseAndSubmit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	anxiety := env.tag(t, "anxiety")
	depression := env.tag(t, "depression")
	t1 := env.therapists.AddTherapist(domain.Therapist{FirstName: "T1", Tags: []domain.TagID{anxiety.ID}})
	env.therapists.AddTherapist(domain.Therapist{FirstName: "T2", Tags: []domain.TagID{depression.ID}})
	quiz, _ := env.publishOneQuestion(t, anxiety.ID, depression.ID)

	attempt, draft, err := env.attempts.Start(ctx, quiz.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q := draft.Data.Questions[0]

	progress, err := env.attempts.Choose(ctx, attempt.ID, q.ID, q.Answers[1].ID)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if progress.Answered != 1 || progress.Total != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	// Changing the answer replaces the earlier choice.
	if _, err := env.attempts.Choose(ctx, attempt.ID, q.ID, q.Answers[0].ID); err != nil {
		t.Fatalf("rechoose: %v", err)
	}

	matches, err := env.attempts.Submit(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(matches) != 1 || matches[0].Therapist.ID != t1.ID {
		t.Fatalf("expected only T1, got %+v", matches)
	}
	if _, err := env.attempts.Progress(ctx, attempt.ID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt closed after submit, got %v", err)
	}
}

func TestAttemptRejectsForeignAnswer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	quiz, _ := env.publishOneQuestion(t, 1, 2)
	attempt, draft, err := env.attempts.Start(ctx, quiz.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := env.attempts.Choose(ctx, attempt.ID, draft.Data.Questions[0].ID, 999); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.attempts.Submit(ctx, attempt.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected empty submission to be rejected, got %v", err)
	}
}

func TestAttemptResumeAndRepublish(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	quiz, _ := env.publishOneQuestion(t, 1)

	first, live, err := env.attempts.Start(ctx, quiz.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q := live.Data.Questions[0]
	if _, err := env.attempts.Choose(ctx, first.ID, q.ID, q.Answers[0].ID); err != nil {
		t.Fatalf("choose: %v", err)
	}
	resumed, _, err := env.attempts.Start(ctx, quiz.ID, first.ID)
	if err != nil || resumed.ID != first.ID {
		t.Fatalf("expected resume of %s, got %s err=%v", first.ID, resumed.ID, err)
	}

	next, err := env.drafts.CreateDraft(ctx, quiz.ID, "v2", "ania", twoQuestions(1, 2))
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if _, err := env.drafts.Publish(ctx, quiz.ID, next.ID); err != nil {
		t.Fatalf("publish v2: %v", err)
	}

	// Answer ids chosen on the old draft must not be scored against the new one.
	if _, err := env.attempts.Submit(ctx, first.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected submit after republish to be rejected, got %v", err)
	}
	if _, err := env.attempts.Choose(ctx, first.ID, q.ID, q.Answers[0].ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected choose after republish to be rejected, got %v", err)
	}

	restarted, draft, err := env.attempts.Start(ctx, quiz.ID, first.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if restarted.ID == first.ID || restarted.DraftID != next.ID || len(draft.Data.Questions) != 2 {
		t.Fatalf("expected a fresh attempt on the new draft, got %+v", restarted)
	}
}

func TestAttemptTimestampsFollowClock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	quiz, _ := env.publishOneQuestion(t, 1)

	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	store := memory.NewAttemptStore()
	attempts := app.NewAttemptServiceWithClock(store, env.matches, nil, func() time.Time { return now })

	attempt, draft, err := attempts.Start(ctx, quiz.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !attempt.UpdatedAt.Equal(now) {
		t.Fatalf("expected start stamped %v, got %v", now, attempt.UpdatedAt)
	}

	now = now.Add(time.Minute)
	q := draft.Data.Questions[0]
	if _, err := attempts.Choose(ctx, attempt.ID, q.ID, q.Answers[0].ID); err != nil {
		t.Fatalf("choose: %v", err)
	}
	stored, err := store.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if !stored.UpdatedAt.Equal(now) || stored.Choices[q.ID] != q.Answers[0].ID {
		t.Fatalf("expected choice stamped %v, got %+v", now, stored)
	}
}
