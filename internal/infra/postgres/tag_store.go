package postgres

import (
	"context"
	"errors"
	"fmt"

	"therapist-match-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TagStore is the authoritative tag list in Postgres.
type TagStore struct {
	pool *pgxpool.Pool
}

func NewTagStore(pool *pgxpool.Pool) *TagStore {
	return &TagStore{pool: pool}
}

func (s *TagStore) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Tag, 0)
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TagStore) GetTag(ctx context.Context, id domain.TagID) (domain.Tag, error) {
	t := domain.Tag{ID: id}
	err := s.pool.QueryRow(ctx, `SELECT name FROM tags WHERE id=$1`, id).Scan(&t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tag{}, domain.ErrTagNotFound
	}
	if err != nil {
		return domain.Tag{}, fmt.Errorf("load tag: %w", err)
	}
	return t, nil
}

func (s *TagStore) CreateTag(ctx context.Context, name string) (domain.Tag, error) {
	t := domain.Tag{Name: name}
	err := s.pool.QueryRow(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id`, name).Scan(&t.ID)
	if isUniqueViolation(err) {
		return domain.Tag{}, domain.ErrDuplicateName
	}
	if err != nil {
		return domain.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return t, nil
}

func (s *TagStore) UpdateTag(ctx context.Context, id domain.TagID, name string) (domain.Tag, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE tags SET name=$2 WHERE id=$1`, id, name)
	if isUniqueViolation(err) {
		return domain.Tag{}, domain.ErrDuplicateName
	}
	if err != nil {
		return domain.Tag{}, fmt.Errorf("update tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Tag{}, domain.ErrTagNotFound
	}
	return domain.Tag{ID: id, Name: name}, nil
}

func (s *TagStore) DeleteTag(ctx context.Context, id domain.TagID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTagNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
