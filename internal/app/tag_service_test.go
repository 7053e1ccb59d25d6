package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/domain"
)

func TestDeleteTagConflictThenCascade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	anxiety := env.tag(t, "anxiety")
	therapist := env.therapists.AddTherapist(domain.Therapist{FirstName: "Ola", Tags: []domain.TagID{anxiety.ID}})
	quiz, draft := env.publishOneQuestion(t, anxiety.ID)

	err := env.tagsSvc.DeleteTag(ctx, anxiety.ID, false)
	var conflict *domain.UsageConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected usage conflict, got %v", err)
	}
	if len(conflict.Usage.Therapists) != 1 || len(conflict.Usage.Answers) != 1 {
		t.Fatalf("unexpected usage %+v", conflict.Usage)
	}
	if _, err := env.tags.GetTag(ctx, anxiety.ID); err != nil {
		t.Fatalf("tag should remain: %v", err)
	}
	if tags, _ := env.therapists.TagsOf(ctx, therapist.ID); len(tags) != 1 {
		t.Fatalf("therapist association should remain, got %v", tags)
	}
	if live, _, _ := env.drafts.GetPublished(ctx, quiz.ID); len(live.Data.Questions[0].Answers[0].Tags) != 1 {
		t.Fatalf("answer tag should remain")
	}

	if err := env.tagsSvc.DeleteTag(ctx, anxiety.ID, true); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
	if _, err := env.tags.GetTag(ctx, anxiety.ID); !errors.Is(err, domain.ErrTagNotFound) {
		t.Fatalf("expected tag gone, got %v", err)
	}
	if tags, _ := env.therapists.TagsOf(ctx, therapist.ID); len(tags) != 0 {
		t.Fatalf("therapist association should be gone, got %v", tags)
	}
	live, _ := env.matches.Published(ctx, quiz.ID)
	if live.ID != draft.ID || len(live.Data.Questions[0].Answers[0].Tags) != 0 {
		t.Fatalf("published answer still tagged: %+v", live.Data)
	}
	if rec, ok := env.journal.Get(anxiety.ID); !ok || rec.State != domain.CascadeTagDeleted {
		t.Fatalf("expected journal to reach deleted, got %+v", rec)
	}
}

func TestDeleteUnusedTag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "grief")

	if err := env.tagsSvc.DeleteTag(ctx, tag.ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.tagsSvc.DeleteTag(ctx, tag.ID, false); !errors.Is(err, domain.ErrTagNotFound) {
		t.Fatalf("expected tag not found, got %v", err)
	}
}

func TestFindUsageDraftScope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "anxiety")
	other := env.tag(t, "sleep")
	quiz, _ := env.publishOneQuestion(t, other.ID)
	if _, err := env.drafts.CreateDraft(ctx, quiz.ID, "wip", "ania", twoQuestions(tag.ID, other.ID)); err != nil {
		t.Fatalf("create wip: %v", err)
	}

	published, err := env.tagsSvc.FindUsage(ctx, tag.ID, false)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if published.InUse() {
		t.Fatalf("tag is only in an unpublished draft, got %+v", published)
	}

	all, err := env.tagsSvc.FindUsage(ctx, tag.ID, true)
	if err != nil {
		t.Fatalf("usage all: %v", err)
	}
	if len(all.Answers) != 2 {
		t.Fatalf("expected two answer refs in the draft, got %+v", all.Answers)
	}
	if all.Answers[0].QIdx != 0 || all.Answers[0].AIdx != 0 || all.Answers[1].QIdx != 1 || all.Answers[1].AIdx != 1 {
		t.Fatalf("unexpected positions %+v", all.Answers)
	}

	// An unpublished draft still blocks deletion.
	if err := env.tagsSvc.DeleteTag(ctx, tag.ID, false); !errors.Is(err, domain.ErrUsageConflict) {
		t.Fatalf("expected usage conflict, got %v", err)
	}
}

func TestCascadeRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "anxiety")
	env.therapists.AddTherapist(domain.Therapist{Tags: []domain.TagID{tag.ID}})
	env.publishOneQuestion(t, tag.ID)

	if err := env.tagsSvc.CascadeRemove(ctx, tag.ID); err != nil {
		t.Fatalf("first cascade: %v", err)
	}
	if err := env.tagsSvc.CascadeRemove(ctx, tag.ID); err != nil {
		t.Fatalf("second cascade: %v", err)
	}
	usage, _ := env.tagsSvc.FindUsage(ctx, tag.ID, true)
	if usage.InUse() {
		t.Fatalf("expected no references, got %+v", usage)
	}
	if _, err := env.tags.GetTag(ctx, tag.ID); err != nil {
		t.Fatalf("cascade alone must not delete the tag: %v", err)
	}
	if pending, _ := env.journal.Pending(ctx); len(pending) != 0 {
		t.Fatalf("standalone cascade should not journal, got %+v", pending)
	}
}

func TestDeleteTagRefusesWhenSourceUnreachable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "anxiety")
	svc := app.NewTagService(env.tags, failingIndex{env.therapists}, env.quizzes, env.cache, env.journal, time.Second, nil)

	usage, err := svc.FindUsage(ctx, tag.ID, true)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Complete() || usage.Unresolved[0] != domain.SourceTherapists {
		t.Fatalf("expected therapists unresolved, got %+v", usage)
	}

	err = svc.DeleteTag(ctx, tag.ID, true)
	var unreachable *domain.UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
	if _, err := env.tags.GetTag(ctx, tag.ID); err != nil {
		t.Fatalf("tag must survive an unresolved check: %v", err)
	}
}

func TestSlowSourceIsBounded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "anxiety")
	svc := app.NewTagService(env.tags, slowIndex{env.therapists}, env.quizzes, env.cache, env.journal, 20*time.Millisecond, nil)

	usage, err := svc.FindUsage(ctx, tag.ID, false)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Complete() {
		t.Fatalf("expected timed out source to be unresolved")
	}
}

func TestResumeCascadesFinishesPendingDeletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "anxiety")
	gone := env.tag(t, "legacy")
	therapist := env.therapists.AddTherapist(domain.Therapist{Tags: []domain.TagID{tag.ID}})
	env.publishOneQuestion(t, tag.ID)

	// A crash after the cascade started.
	_ = env.journal.Record(ctx, domain.CascadeRecord{TagID: tag.ID, RunID: "run-1", State: domain.CascadeInProgress})
	// A crash after the tag row was removed but before the final step was journaled.
	_ = env.journal.Record(ctx, domain.CascadeRecord{TagID: gone.ID, RunID: "run-2", State: domain.CascadeConfirmed})
	_ = env.tags.DeleteTag(ctx, gone.ID)

	resumed, err := env.tagsSvc.ResumeCascades(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed != 2 {
		t.Fatalf("expected 2 resumed, got %d", resumed)
	}
	if _, err := env.tags.GetTag(ctx, tag.ID); !errors.Is(err, domain.ErrTagNotFound) {
		t.Fatalf("expected tag deleted, got %v", err)
	}
	if tags, _ := env.therapists.TagsOf(ctx, therapist.ID); len(tags) != 0 {
		t.Fatalf("expected association removed, got %v", tags)
	}
	if pending, _ := env.journal.Pending(ctx); len(pending) != 0 {
		t.Fatalf("expected empty journal, got %+v", pending)
	}
}

func TestSetTherapistTagsRejectsUnknownTag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	tag := env.tag(t, "anxiety")
	therapist := env.therapists.AddTherapist(domain.Therapist{FirstName: "Ola"})

	if err := env.tagsSvc.SetTherapistTags(ctx, therapist.ID, []domain.TagID{tag.ID, 99}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := env.tagsSvc.SetTherapistTags(ctx, therapist.ID, []domain.TagID{tag.ID, tag.ID}); err != nil {
		t.Fatalf("set tags: %v", err)
	}
	if tags, _ := env.tagsSvc.TherapistTags(ctx, therapist.ID); len(tags) != 1 {
		t.Fatalf("expected de-duplicated tags, got %v", tags)
	}
}

type slowIndex struct {
	app.TherapistIndex
}

func (slowIndex) TherapistsWithTag(ctx context.Context, _ domain.TagID) ([]domain.TherapistRef, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
