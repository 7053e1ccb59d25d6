package app

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"therapist-match-service/internal/domain"
)

// UnitWeight is what every tag of a selected answer contributes, and the most a single
// therapist tag can score.
const UnitWeight = 100

// ComputeTagWeights sums UnitWeight per tag across the selected answers. Unknown
// answer ids are ignored and repeated ids count once.
func ComputeTagWeights(selected []int64, content domain.Snapshot) map[domain.TagID]int {
	weights := make(map[domain.TagID]int)
	seen := make(map[int64]struct{}, len(selected))
	for _, id := range selected {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		answer, ok := content.FindAnswer(id)
		if !ok {
			continue
		}
		counted := make(map[domain.TagID]struct{}, len(answer.Tags))
		for _, tag := range answer.Tags {
			if _, dup := counted[tag]; dup {
				continue
			}
			counted[tag] = struct{}{}
			weights[tag] += UnitWeight
		}
	}
	return weights
}

// ScoreTherapist returns round(100 * total / (UnitWeight * |tags|)) in [0, 100].
// A therapist without tags scores 0.
func ScoreTherapist(therapistTags []domain.TagID, weights map[domain.TagID]int) int {
	unique := make(map[domain.TagID]struct{}, len(therapistTags))
	total := 0
	for _, tag := range therapistTags {
		if _, dup := unique[tag]; dup {
			continue
		}
		unique[tag] = struct{}{}
		total += weights[tag]
	}
	maxPossible := UnitWeight * len(unique)
	if maxPossible == 0 {
		return 0
	}
	score := int(math.Round(100 * float64(total) / float64(maxPossible)))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// RankTherapists scores every therapist, drops non-positive scores and sorts by score
// descending. Ties keep roster order.
func RankTherapists(therapists []domain.Therapist, weights map[domain.TagID]int) []domain.TherapistMatch {
	matches := make([]domain.TherapistMatch, 0, len(therapists))
	for _, t := range therapists {
		score := ScoreTherapist(t.Tags, weights)
		if score <= 0 {
			continue
		}
		matches = append(matches, domain.TherapistMatch{Therapist: t, MatchScore: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// MatchService resolves a quiz submission into a therapist ranking.
type MatchService struct {
	published  PublishedCache
	therapists TherapistIndex
	log        *slog.Logger
}

func NewMatchService(published PublishedCache, therapists TherapistIndex, logger *slog.Logger) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{published: published, therapists: therapists, log: logger}
}

// Published returns the live draft used for quiz-taking.
func (s *MatchService) Published(ctx context.Context, quizID int64) (domain.Draft, error) {
	return s.published.GetPublished(ctx, quizID)
}

// Submit ranks therapists against the selected answers of the quiz's live draft. A
// roster that cannot be loaded yields an empty ranking rather than an error.
func (s *MatchService) Submit(ctx context.Context, quizID int64, answerIDs []int64) ([]domain.TherapistMatch, error) {
	if len(answerIDs) == 0 {
		return nil, domain.Invalid("answers", "select at least one answer")
	}
	for _, id := range answerIDs {
		if id <= 0 {
			return nil, domain.Invalid("answers", "invalid answer id %d", id)
		}
	}

	draft, err := s.published.GetPublished(ctx, quizID)
	if err != nil {
		return nil, err
	}
	weights := ComputeTagWeights(answerIDs, draft.Data)

	roster, err := s.therapists.Roster(ctx)
	if err != nil {
		s.log.Warn("therapist roster unavailable, returning no matches", "quiz_id", quizID, "err", err)
		return []domain.TherapistMatch{}, nil
	}
	matches := RankTherapists(roster, weights)
	s.log.Debug("quiz submitted", "quiz_id", quizID, "draft_id", draft.ID, "answers", len(answerIDs), "matches", len(matches))
	return matches, nil
}
