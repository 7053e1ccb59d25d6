package cli

import (
	"context"

	"therapist-match-service/internal/domain"
	"therapist-match-service/internal/infra/memory"
	transport "therapist-match-service/internal/transport/http"
)

// seedDemo publishes a small quiz and registers a few therapists so an in-memory server
// is usable without an admin session.
func seedDemo(ctx context.Context, svc transport.Services, therapists *memory.TherapistIndex) error {
	ids := map[string]domain.TagID{}
	for _, name := range []string{"anxiety", "depression", "relationships", "trauma"} {
		tag, err := svc.Tags.CreateTag(ctx, name)
		if err != nil {
			return err
		}
		ids[name] = tag.ID
	}

	quiz, err := svc.Drafts.CreateQuiz(ctx, "Find your therapist", "A few questions to match you with a specialist.")
	if err != nil {
		return err
	}
	content := domain.Snapshot{Questions: []domain.Question{
		{Text: "What brings you here?", Order: 1, Answers: []domain.Answer{
			{Text: "Constant worry", Order: 1, Tags: []domain.TagID{ids["anxiety"]}},
			{Text: "Feeling low", Order: 2, Tags: []domain.TagID{ids["depression"]}},
			{Text: "Problems with my partner", Order: 3, Tags: []domain.TagID{ids["relationships"]}},
		}},
		{Text: "Has something difficult happened recently?", Order: 2, Answers: []domain.Answer{
			{Text: "Yes", Order: 1, Tags: []domain.TagID{ids["trauma"]}},
			{Text: "No", Order: 2},
		}},
	}}
	draft, err := svc.Drafts.CreateDraft(ctx, quiz.ID, "initial", "system", content)
	if err != nil {
		return err
	}
	if _, err := svc.Drafts.Publish(ctx, quiz.ID, draft.ID); err != nil {
		return err
	}

	therapists.AddTherapist(domain.Therapist{FirstName: "Anna", LastName: "Nowak", Specialization: "CBT",
		Tags: []domain.TagID{ids["anxiety"], ids["depression"]}})
	therapists.AddTherapist(domain.Therapist{FirstName: "Jan", LastName: "Kowalski", Specialization: "Couples therapy",
		Tags: []domain.TagID{ids["relationships"]}})
	therapists.AddTherapist(domain.Therapist{FirstName: "Maria", LastName: "Wisniewska", Specialization: "Trauma-focused therapy",
		Tags: []domain.TagID{ids["trauma"], ids["anxiety"]}})
	return nil
}
