package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"therapist-match-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestAttemptStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewAttemptStore(newClient(mr), time.Minute)

	attempt := domain.Attempt{ID: "a1", QuizID: 1, DraftID: 2, Choices: map[int64]int64{10: 11, 12: 13}}
	if err := store.SaveAttempt(ctx, attempt); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:attempt:a1") {
		t.Fatalf("expected redis key to be set")
	}

	got, err := store.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DraftID != 2 || got.Choices[12] != 13 {
		t.Fatalf("unexpected attempt %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.GetAttempt(ctx, "a1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt to expire, got %v", err)
	}

	_ = store.SaveAttempt(ctx, attempt)
	_ = store.DeleteAttempt(ctx, "a1")
	if mr.Exists("quiz:attempt:a1") {
		t.Fatalf("expected redis key to be removed")
	}
}
