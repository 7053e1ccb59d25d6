package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"therapist-match-service/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultFanoutTimeout bounds each collaborator call during usage checks and cascades.
const DefaultFanoutTimeout = 3 * time.Second

// TagService owns tag records and the cross-store tag lifecycle: usage resolution,
// cascading removal and the delete protocol.
type TagService struct {
	tags       TagRepository
	therapists TherapistIndex
	content    ContentRepository
	cache      PublishedCache
	journal    CascadeJournal
	timeout    time.Duration
	clock      func() time.Time
	newRunID   func() string
	log        *slog.Logger
}

func NewTagService(tags TagRepository, therapists TherapistIndex, content ContentRepository, cache PublishedCache, journal CascadeJournal, timeout time.Duration, logger *slog.Logger) *TagService {
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TagService{
		tags:       tags,
		therapists: therapists,
		content:    content,
		cache:      cache,
		journal:    journal,
		timeout:    timeout,
		clock:      time.Now,
		newRunID:   func() string { return uuid.NewString() },
		log:        logger,
	}
}

func (s *TagService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.ListTags(ctx)
}

func (s *TagService) CreateTag(ctx context.Context, name string) (domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Tag{}, domain.Invalid("name", "tag name is required")
	}
	return s.tags.CreateTag(ctx, name)
}

func (s *TagService) UpdateTag(ctx context.Context, id domain.TagID, name string) (domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Tag{}, domain.Invalid("name", "tag name is required")
	}
	return s.tags.UpdateTag(ctx, id, name)
}

// Roster lists therapists with their tags.
func (s *TagService) Roster(ctx context.Context) ([]domain.Therapist, error) {
	return s.therapists.Roster(ctx)
}

func (s *TagService) TherapistTags(ctx context.Context, therapistID int64) ([]domain.TagID, error) {
	return s.therapists.TagsOf(ctx, therapistID)
}

// SetTherapistTags replaces a therapist's tags; every tag must exist.
func (s *TagService) SetTherapistTags(ctx context.Context, therapistID int64, tags []domain.TagID) error {
	known, err := s.tags.ListTags(ctx)
	if err != nil {
		return err
	}
	ids := make(map[domain.TagID]struct{}, len(known))
	for _, t := range known {
		ids[t.ID] = struct{}{}
	}
	unique := make([]domain.TagID, 0, len(tags))
	seen := make(map[domain.TagID]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := ids[t]; !ok {
			return domain.Invalid("tags", "unknown tag %d", t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return s.therapists.SetTags(ctx, therapistID, unique)
}

// FindUsage reports every reference to tagID. The published snapshots are always
// checked; allDrafts extends the check to every saved draft. Sources that fail or time
// out are listed in Unresolved instead of being reported as unused.
func (s *TagService) FindUsage(ctx context.Context, tagID domain.TagID, allDrafts bool) (domain.TagUsage, error) {
	if _, err := s.tags.GetTag(ctx, tagID); err != nil {
		return domain.TagUsage{}, err
	}
	return s.findUsage(ctx, tagID, allDrafts), nil
}

func (s *TagService) findUsage(ctx context.Context, tagID domain.TagID, allDrafts bool) domain.TagUsage {
	var (
		therapists        []domain.TherapistRef
		published, drafts []domain.Draft
		therapistErr      error
		pubErr, draftErr  error
	)

	var g errgroup.Group
	g.Go(func() error {
		therapists, therapistErr = bounded(ctx, s.timeout, func(ctx context.Context) ([]domain.TherapistRef, error) {
			return s.therapists.TherapistsWithTag(ctx, tagID)
		})
		return nil
	})
	g.Go(func() error {
		published, pubErr = bounded(ctx, s.timeout, s.content.PublishedDrafts)
		return nil
	})
	if allDrafts {
		g.Go(func() error {
			drafts, draftErr = bounded(ctx, s.timeout, s.content.AllDrafts)
			return nil
		})
	}
	_ = g.Wait()

	usage := domain.TagUsage{
		TagID:      tagID,
		Therapists: []domain.TherapistRef{},
		Questions:  []domain.QuestionRef{},
		Answers:    []domain.AnswerRef{},
	}
	if therapistErr != nil {
		s.log.Warn("tag usage source unresolved", "tag_id", tagID, "source", domain.SourceTherapists, "err", therapistErr)
		usage.Unresolved = append(usage.Unresolved, domain.SourceTherapists)
	} else {
		usage.Therapists = append(usage.Therapists, therapists...)
	}

	seen := make(map[int64]struct{})
	collect := func(source string, list []domain.Draft, err error) {
		if err != nil {
			s.log.Warn("tag usage source unresolved", "tag_id", tagID, "source", source, "err", err)
			usage.Unresolved = append(usage.Unresolved, source)
			return
		}
		for _, d := range list {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			questions, answers := d.Data.TagRefs(tagID)
			for _, q := range questions {
				q.QuizID, q.DraftID = d.QuizID, d.ID
				usage.Questions = append(usage.Questions, q)
			}
			for _, a := range answers {
				a.QuizID, a.DraftID = d.QuizID, d.ID
				usage.Answers = append(usage.Answers, a)
			}
		}
	}
	collect(domain.SourcePublished, published, pubErr)
	if allDrafts {
		collect(domain.SourceDrafts, drafts, draftErr)
	}
	return usage
}

// CascadeRemove strips tagID from every therapist and every draft, published ones
// included, then verifies nothing references it. Safe to re-run after a partial failure.
func (s *TagService) CascadeRemove(ctx context.Context, tagID domain.TagID) error {
	return s.cascade(ctx, tagID, s.newRunID())
}

func (s *TagService) cascade(ctx context.Context, tagID domain.TagID, runID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := bounded(gctx, s.timeout, func(ctx context.Context) (int, error) {
			return s.content.StripTag(ctx, tagID)
		})
		if err != nil {
			return &domain.UnreachableError{Source: domain.SourceDrafts, Err: err}
		}
		s.log.Info("tag stripped from quiz content", "tag_id", tagID, "run_id", runID, "drafts", n)
		return nil
	})
	g.Go(func() error {
		n, err := bounded(gctx, s.timeout, func(ctx context.Context) (int, error) {
			return s.therapists.RemoveTagFromAll(ctx, tagID)
		})
		if err != nil {
			return &domain.UnreachableError{Source: domain.SourceTherapists, Err: err}
		}
		s.log.Info("tag removed from therapists", "tag_id", tagID, "run_id", runID, "therapists", n)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error("tag cascade failed", "tag_id", tagID, "run_id", runID, "err", err)
		return err
	}

	if err := s.cache.Purge(ctx); err != nil {
		s.log.Warn("purge published cache after cascade", "tag_id", tagID, "err", err)
	}

	residual := s.findUsage(ctx, tagID, true)
	if !residual.Complete() {
		return unresolvedError(residual)
	}
	if residual.InUse() {
		return fmt.Errorf("cascade left residual references: %w", &domain.UsageConflictError{Usage: residual})
	}
	return nil
}

// journaledCascade is the cascade step of a tag deletion.
func (s *TagService) journaledCascade(ctx context.Context, tagID domain.TagID, runID string) error {
	s.record(ctx, tagID, runID, domain.CascadeInProgress)
	if err := s.cascade(ctx, tagID, runID); err != nil {
		return err
	}
	s.record(ctx, tagID, runID, domain.CascadeConfirmed)
	return nil
}

// DeleteTag runs the delete protocol: resolve usage over every store; when the tag is
// in use either fail with a UsageConflictError or, with cascade set, strip and verify
// every reference before the tag row is removed. The row is never removed while any
// source is unresolved.
func (s *TagService) DeleteTag(ctx context.Context, tagID domain.TagID, cascade bool) error {
	if _, err := s.tags.GetTag(ctx, tagID); err != nil {
		return err
	}
	usage := s.findUsage(ctx, tagID, true)
	if !usage.Complete() {
		return unresolvedError(usage)
	}
	if usage.InUse() && !cascade {
		return &domain.UsageConflictError{Usage: usage}
	}

	runID := s.newRunID()
	s.record(ctx, tagID, runID, domain.CascadeUsageResolved)
	if usage.InUse() {
		if err := s.journaledCascade(ctx, tagID, runID); err != nil {
			return err
		}
	}
	return s.finishDelete(ctx, tagID, runID)
}

// ResumeCascades replays every journaled deletion that did not reach the deleted state.
func (s *TagService) ResumeCascades(ctx context.Context) (int, error) {
	pending, err := s.journal.Pending(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	resumed := 0
	for _, rec := range pending {
		s.log.Info("resuming tag deletion", "tag_id", rec.TagID, "run_id", rec.RunID, "state", rec.State)
		if _, err := s.tags.GetTag(ctx, rec.TagID); errors.Is(err, domain.ErrTagNotFound) {
			s.record(ctx, rec.TagID, rec.RunID, domain.CascadeTagDeleted)
			resumed++
			continue
		} else if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.journaledCascade(ctx, rec.TagID, rec.RunID); err != nil {
			errs = append(errs, fmt.Errorf("tag %d: %w", rec.TagID, err))
			continue
		}
		if err := s.finishDelete(ctx, rec.TagID, rec.RunID); err != nil {
			errs = append(errs, fmt.Errorf("tag %d: %w", rec.TagID, err))
			continue
		}
		resumed++
	}
	return resumed, errors.Join(errs...)
}

func (s *TagService) finishDelete(ctx context.Context, tagID domain.TagID, runID string) error {
	if err := s.tags.DeleteTag(ctx, tagID); err != nil && !errors.Is(err, domain.ErrTagNotFound) {
		return err
	}
	s.record(ctx, tagID, runID, domain.CascadeTagDeleted)
	s.log.Info("tag deleted", "tag_id", tagID, "run_id", runID)
	return nil
}

// record journals a saga step. Journal failures are logged and do not abort the saga.
func (s *TagService) record(ctx context.Context, tagID domain.TagID, runID string, state domain.CascadeState) {
	rec := domain.CascadeRecord{TagID: tagID, RunID: runID, State: state, UpdatedAt: s.clock()}
	if err := s.journal.Record(ctx, rec); err != nil {
		s.log.Error("journal cascade step", "tag_id", tagID, "run_id", runID, "state", state, "err", err)
		return
	}
	s.log.Debug("cascade step", "tag_id", tagID, "run_id", runID, "state", state)
}

func unresolvedError(usage domain.TagUsage) error {
	return &domain.UnreachableError{
		Source: strings.Join(usage.Unresolved, ","),
		Err:    errors.New("usage could not be confirmed"),
	}
}

// bounded runs fn with a per-call timeout.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
