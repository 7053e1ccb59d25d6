package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"therapist-match-service/internal/domain"
)

func TestPublishedDraftIsImmutable(t *testing.T) {
	ctx := context.Background()
	store, quizID, draftID := seededStore(t)

	_, err := store.OverwriteDraft(ctx, domain.Draft{ID: draftID, QuizID: quizID, Name: "v1", Author: "ania", Data: sampleSnapshot()})
	if !errors.Is(err, domain.ErrPublishedDraftImmutable) {
		t.Fatalf("expected immutable error on overwrite, got %v", err)
	}
	if err := store.DeleteDraft(ctx, quizID, draftID); !errors.Is(err, domain.ErrPublishedDraftImmutable) {
		t.Fatalf("expected immutable error on delete, got %v", err)
	}
}

func TestPublishRejectsForeignDraft(t *testing.T) {
	ctx := context.Background()
	store, quizID, draftID := seededStore(t)
	other, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Other"})

	if _, err := store.Publish(ctx, other.ID, draftID); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Fatalf("expected draft not found, got %v", err)
	}
	quiz, _ := store.GetQuiz(ctx, quizID)
	if !quiz.IsPublished(draftID) {
		t.Fatalf("expected original publication untouched")
	}
}

func TestDraftNamesAreUniquePerQuiz(t *testing.T) {
	ctx := context.Background()
	store, quizID, _ := seededStore(t)

	if _, err := store.CreateDraft(ctx, domain.Draft{QuizID: quizID, Name: "v1", Data: sampleSnapshot()}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected duplicate name, got %v", err)
	}

	other, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Other"})
	if _, err := store.CreateDraft(ctx, domain.Draft{QuizID: other.ID, Name: "v1", Data: sampleSnapshot()}); err != nil {
		t.Fatalf("same name in another quiz should be allowed: %v", err)
	}

	d2, err := store.CreateDraft(ctx, domain.Draft{QuizID: quizID, Name: "v2", Data: sampleSnapshot()})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	d2.Name = "v1"
	if _, err := store.OverwriteDraft(ctx, d2); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected duplicate name on rename, got %v", err)
	}
	d2.Name = "v2"
	if _, err := store.OverwriteDraft(ctx, d2); err != nil {
		t.Fatalf("keeping own name should succeed: %v", err)
	}
}

func TestListDraftsNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store := NewQuizStoreWithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	quiz, _ := store.CreateQuiz(ctx, domain.Quiz{Title: "Match"})
	for _, name := range []string{"a", "b", "c"} {
		if _, err := store.CreateDraft(ctx, domain.Draft{QuizID: quiz.ID, Name: name, Data: sampleSnapshot()}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	drafts, err := store.ListDrafts(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 3 || drafts[0].Name != "c" || drafts[2].Name != "a" {
		t.Fatalf("expected newest first, got %+v", drafts)
	}
}

func TestStoredDraftsAreCopies(t *testing.T) {
	ctx := context.Background()
	store, quizID, draftID := seededStore(t)

	d, _ := store.GetDraft(ctx, quizID, draftID)
	d.Data.Questions[0].Text = "mutated"
	d.Data.Questions[0].Answers[0].Tags[0] = 99

	again, _ := store.GetDraft(ctx, quizID, draftID)
	if again.Data.Questions[0].Text != "Main concern?" || again.Data.Questions[0].Answers[0].Tags[0] != 1 {
		t.Fatalf("stored draft leaked a mutable reference: %+v", again.Data)
	}
}

func TestStripTagTouchesPublishedAndDrafts(t *testing.T) {
	ctx := context.Background()
	store, quizID, _ := seededStore(t)
	if _, err := store.CreateDraft(ctx, domain.Draft{QuizID: quizID, Name: "v2", Data: sampleSnapshot()}); err != nil {
		t.Fatalf("create v2: %v", err)
	}

	changed, err := store.StripTag(ctx, 1)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 drafts changed, got %d", changed)
	}
	again, _ := store.StripTag(ctx, 1)
	if again != 0 {
		t.Fatalf("expected second strip to be a no-op, got %d", again)
	}

	all, _ := store.AllDrafts(ctx)
	for _, d := range all {
		if q, a := d.Data.TagRefs(1); len(q)+len(a) != 0 {
			t.Fatalf("draft %d still references tag 1", d.ID)
		}
	}
}
