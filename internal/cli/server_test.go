package cli

import (
	"context"
	"testing"

	"therapist-match-service/internal/config"
	"therapist-match-service/internal/logging"
)

func TestBuildDepsInMemorySeedsDemo(t *testing.T) {
	ctx := context.Background()
	wired, err := buildDeps(ctx, config.Config{}, logging.Discard())
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	defer wired.Close()

	quizzes, err := wired.services.Drafts.ListQuizzes(ctx)
	if err != nil || len(quizzes) != 1 {
		t.Fatalf("expected one demo quiz, got %d (%v)", len(quizzes), err)
	}
	draft, err := wired.services.Matches.Published(ctx, quizzes[0].ID)
	if err != nil {
		t.Fatalf("published: %v", err)
	}
	worry := draft.Data.Questions[0].Answers[0].ID
	matches, err := wired.services.Matches.Submit(ctx, quizzes[0].ID, []int64{worry})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected the two anxiety therapists, got %+v", matches)
	}
	if matches[0].Therapist.FirstName != "Anna" || matches[0].MatchScore != 50 {
		t.Fatalf("unexpected top match %+v", matches[0])
	}

	n, err := wired.services.Tags.ResumeCascades(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to resume, got %d (%v)", n, err)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"start"}, {"migrate"}, {"cascade", "resume"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatalf("expected --config flag")
	}
}
