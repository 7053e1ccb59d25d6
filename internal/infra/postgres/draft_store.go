package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"therapist-match-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// OpenDB opens a bun handle over pgdriver.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID               int64  `bun:"id,pk,autoincrement"`
	Title            string `bun:"title,notnull"`
	Description      string `bun:"description,notnull"`
	PublishedDraftID *int64 `bun:"published_draft_id"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{ID: r.ID, Title: r.Title, Description: r.Description, PublishedDraftID: r.PublishedDraftID}
}

type draftRow struct {
	bun.BaseModel `bun:"table:quiz_drafts,alias:d"`

	ID        int64          `bun:"id,pk,autoincrement"`
	QuizID    int64          `bun:"quiz_id,notnull"`
	Name      string         `bun:"name,notnull"`
	Author    string         `bun:"author,notnull"`
	Data      snapshotColumn `bun:"data,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp"`
}

func (r draftRow) toDomain() domain.Draft {
	return domain.Draft{
		ID:        r.ID,
		QuizID:    r.QuizID,
		Name:      r.Name,
		Author:    r.Author,
		Data:      r.Data.Snapshot,
		CreatedAt: r.CreatedAt,
	}
}

// snapshotColumn stores content through the versioned codec so rows written by older
// releases are migrated on read.
type snapshotColumn struct {
	domain.Snapshot
}

func (c snapshotColumn) Value() (driver.Value, error) {
	raw, err := domain.EncodeSnapshot(c.Snapshot)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *snapshotColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		c.Snapshot = domain.Snapshot{}
		return nil
	default:
		return fmt.Errorf("scan snapshot: unsupported type %T", src)
	}
	snap, err := domain.DecodeSnapshot(raw)
	if err != nil {
		return err
	}
	c.Snapshot = snap
	return nil
}

// DraftStore persists quizzes and their drafts with bun. Writes that depend on the
// published pointer lock the quiz row first, so the guard and the write are atomic.
type DraftStore struct {
	db *bun.DB
}

func NewDraftStore(db *bun.DB) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	row := quizRow{Title: quiz.Title, Description: quiz.Description}
	if _, err := s.db.NewInsert().Model(&row).Returning("*").Exec(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return row.toDomain(), nil
}

func (s *DraftStore) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	row, err := selectQuiz(ctx, s.db, quizID, false)
	if err != nil {
		return domain.Quiz{}, err
	}
	return row.toDomain(), nil
}

func (s *DraftStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	if err := s.db.NewSelect().Model(&rows).Order("q.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.Quiz, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *DraftStore) Publish(ctx context.Context, quizID, draftID int64) (domain.Quiz, error) {
	var published quizRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		quiz, err := selectQuiz(ctx, tx, quizID, true)
		if err != nil {
			return err
		}
		if _, err := selectDraft(ctx, tx, quizID, draftID); err != nil {
			return err
		}
		quiz.PublishedDraftID = &draftID
		if _, err := tx.NewUpdate().Model(&quiz).Column("published_draft_id").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("publish draft: %w", err)
		}
		published = quiz
		return nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return published.toDomain(), nil
}

func (s *DraftStore) CreateDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error) {
	row := draftRow{
		QuizID: draft.QuizID,
		Name:   draft.Name,
		Author: draft.Author,
		Data:   snapshotColumn{draft.Data},
	}
	_, err := s.db.NewInsert().Model(&row).ExcludeColumn("created_at").Returning("*").Exec(ctx)
	switch {
	case isPgCode(err, uniqueViolation):
		return domain.Draft{}, domain.ErrDuplicateName
	case isPgCode(err, foreignKeyViolation):
		return domain.Draft{}, domain.ErrQuizNotFound
	case err != nil:
		return domain.Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	return row.toDomain(), nil
}

func (s *DraftStore) OverwriteDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error) {
	var updated draftRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		quiz, err := selectQuiz(ctx, tx, draft.QuizID, true)
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.ErrDraftNotFound
		}
		if err != nil {
			return err
		}
		if quiz.toDomain().IsPublished(draft.ID) {
			return domain.ErrPublishedDraftImmutable
		}
		row, err := selectDraft(ctx, tx, draft.QuizID, draft.ID)
		if err != nil {
			return err
		}
		row.Name = draft.Name
		row.Author = draft.Author
		row.Data = snapshotColumn{draft.Data}
		_, err = tx.NewUpdate().Model(&row).Column("name", "author", "data").WherePK().Returning("*").Exec(ctx)
		if isPgCode(err, uniqueViolation) {
			return domain.ErrDuplicateName
		}
		if err != nil {
			return fmt.Errorf("overwrite draft: %w", err)
		}
		updated = row
		return nil
	})
	if err != nil {
		return domain.Draft{}, err
	}
	return updated.toDomain(), nil
}

func (s *DraftStore) ListDrafts(ctx context.Context, quizID int64) ([]domain.Draft, error) {
	var rows []draftRow
	err := s.db.NewSelect().Model(&rows).
		Where("d.quiz_id = ?", quizID).
		Order("d.created_at DESC", "d.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return toDrafts(rows), nil
}

func (s *DraftStore) GetDraft(ctx context.Context, quizID, draftID int64) (domain.Draft, error) {
	row, err := selectDraft(ctx, s.db, quizID, draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	return row.toDomain(), nil
}

func (s *DraftStore) DeleteDraft(ctx context.Context, quizID, draftID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		quiz, err := selectQuiz(ctx, tx, quizID, true)
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.ErrDraftNotFound
		}
		if err != nil {
			return err
		}
		if quiz.toDomain().IsPublished(draftID) {
			return domain.ErrPublishedDraftImmutable
		}
		res, err := tx.NewDelete().Model((*draftRow)(nil)).
			Where("id = ?", draftID).
			Where("quiz_id = ?", quizID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrDraftNotFound
		}
		return nil
	})
}

func (s *DraftStore) PublishedDraft(ctx context.Context, quizID int64) (domain.Draft, error) {
	quiz, err := selectQuiz(ctx, s.db, quizID, false)
	if err != nil {
		return domain.Draft{}, err
	}
	if quiz.PublishedDraftID == nil {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	row, err := selectDraft(ctx, s.db, quizID, *quiz.PublishedDraftID)
	if err != nil {
		return domain.Draft{}, err
	}
	return row.toDomain(), nil
}

func (s *DraftStore) PublishedDrafts(ctx context.Context) ([]domain.Draft, error) {
	var rows []draftRow
	err := s.db.NewSelect().Model(&rows).
		Join("JOIN quizzes AS q ON q.published_draft_id = d.id").
		Order("d.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published drafts: %w", err)
	}
	return toDrafts(rows), nil
}

func (s *DraftStore) AllDrafts(ctx context.Context) ([]domain.Draft, error) {
	var rows []draftRow
	if err := s.db.NewSelect().Model(&rows).Order("d.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return toDrafts(rows), nil
}

// StripTag rewrites every draft referencing tagID, published ones included, in one
// transaction.
func (s *DraftStore) StripTag(ctx context.Context, tagID domain.TagID) (int, error) {
	changed := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		changed = 0
		var rows []draftRow
		if err := tx.NewSelect().Model(&rows).Order("d.id ASC").For("UPDATE").Scan(ctx); err != nil {
			return fmt.Errorf("lock drafts: %w", err)
		}
		for i := range rows {
			if !rows[i].Data.RemoveTag(tagID) {
				continue
			}
			if _, err := tx.NewUpdate().Model(&rows[i]).Column("data").WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("strip tag from draft %d: %w", rows[i].ID, err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func selectQuiz(ctx context.Context, db bun.IDB, quizID int64, forUpdate bool) (quizRow, error) {
	var row quizRow
	q := db.NewSelect().Model(&row).Where("q.id = ?", quizID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quizRow{}, domain.ErrQuizNotFound
		}
		return quizRow{}, fmt.Errorf("load quiz: %w", err)
	}
	return row, nil
}

func selectDraft(ctx context.Context, db bun.IDB, quizID, draftID int64) (draftRow, error) {
	var row draftRow
	err := db.NewSelect().Model(&row).
		Where("d.id = ?", draftID).
		Where("d.quiz_id = ?", quizID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return draftRow{}, domain.ErrDraftNotFound
		}
		return draftRow{}, fmt.Errorf("load draft: %w", err)
	}
	return row, nil
}

func toDrafts(rows []draftRow) []domain.Draft {
	out := make([]domain.Draft, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func isPgCode(err error, code string) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == code
}
