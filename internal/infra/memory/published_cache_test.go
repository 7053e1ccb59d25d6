package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"therapist-match-service/internal/domain"
)

func TestPublishedCacheCaches(t *testing.T) {
	store, quizID, _ := seededStore(t)
	loader := &countingLoader{PublishedLoader: store}
	cache := NewPublishedCache(loader, time.Minute)

	if _, err := cache.GetPublished(context.Background(), quizID); err != nil {
		t.Fatalf("get published: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.GetPublished(context.Background(), quizID); err != nil {
		t.Fatalf("get published 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	if err := cache.Invalidate(context.Background(), quizID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetPublished(context.Background(), quizID); err != nil {
		t.Fatalf("get published 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestPublishedCacheDoesNotCacheMisses(t *testing.T) {
	store := NewQuizStore()
	quiz, _ := store.CreateQuiz(context.Background(), domain.Quiz{Title: "Match"})
	loader := &countingLoader{PublishedLoader: store}
	cache := NewPublishedCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetPublished(context.Background(), quiz.ID); !errors.Is(err, domain.ErrDraftNotFound) {
			t.Fatalf("expected draft not found, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected misses to reach the loader, calls %d", loader.calls)
	}
}

func TestPublishedCacheDropsFillRacingInvalidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		drop func(*PublishedCache, int64) error
	}{
		{"invalidate", func(c *PublishedCache, quizID int64) error { return c.Invalidate(context.Background(), quizID) }},
		{"purge", func(c *PublishedCache, _ int64) error { return c.Purge(context.Background()) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store, quizID, _ := seededStore(t)
			next, err := store.CreateDraft(ctx, domain.Draft{QuizID: quizID, Name: "v2", Author: "ania", Data: sampleSnapshot()})
			if err != nil {
				t.Fatalf("create v2: %v", err)
			}
			loader := newBlockingLoader(store)
			cache := NewPublishedCache(loader, time.Minute)

			done := make(chan domain.Draft)
			go func() {
				draft, _ := cache.GetPublished(ctx, quizID)
				done <- draft
			}()
			<-loader.started

			if _, err := store.Publish(ctx, quizID, next.ID); err != nil {
				t.Fatalf("publish v2: %v", err)
			}
			if err := tc.drop(cache, quizID); err != nil {
				t.Fatalf("drop: %v", err)
			}
			close(loader.release)
			<-done

			got, err := cache.GetPublished(ctx, quizID)
			if err != nil {
				t.Fatalf("get published: %v", err)
			}
			if got.ID != next.ID {
				t.Fatalf("expected draft %d after republish, cache served %d", next.ID, got.ID)
			}
		})
	}
}

// blockingLoader reads the store, then holds its first call until release is closed.
type blockingLoader struct {
	PublishedLoader
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingLoader(inner PublishedLoader) *blockingLoader {
	return &blockingLoader{PublishedLoader: inner, started: make(chan struct{}), release: make(chan struct{})}
}

func (l *blockingLoader) PublishedDraft(ctx context.Context, quizID int64) (domain.Draft, error) {
	draft, err := l.PublishedLoader.PublishedDraft(ctx, quizID)
	if l.calls.Add(1) == 1 {
		close(l.started)
		<-l.release
	}
	return draft, err
}

type countingLoader struct {
	PublishedLoader
	calls int
}

func (l *countingLoader) PublishedDraft(ctx context.Context, quizID int64) (domain.Draft, error) {
	l.calls++
	return l.PublishedLoader.PublishedDraft(ctx, quizID)
}

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{Questions: []domain.Question{
		{
			ID: 1, Text: "Main concern?", Order: 1,
			Answers: []domain.Answer{
				{ID: 1, Text: "Anxiety", Order: 1, Tags: []domain.TagID{1}},
				{ID: 2, Text: "Depression", Order: 2, Tags: []domain.TagID{2}},
			},
		},
	}}
}

func seededStore(t *testing.T) (*QuizStore, int64, int64) {
	t.Helper()
	ctx := context.Background()
	store := NewQuizStore()
	quiz, err := store.CreateQuiz(ctx, domain.Quiz{Title: "Match"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	draft, err := store.CreateDraft(ctx, domain.Draft{QuizID: quiz.ID, Name: "v1", Author: "ania", Data: sampleSnapshot()})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := store.Publish(ctx, quiz.ID, draft.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return store, quiz.ID, draft.ID
}
