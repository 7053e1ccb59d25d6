package postgres

import (
	"context"
	"errors"
	"fmt"

	"therapist-match-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TherapistIndex keeps therapist profiles and the therapist_tags association.
type TherapistIndex struct {
	pool *pgxpool.Pool
}

func NewTherapistIndex(pool *pgxpool.Pool) *TherapistIndex {
	return &TherapistIndex{pool: pool}
}

// AddTherapist inserts a profile with its tags and returns it with the assigned id.
func (x *TherapistIndex) AddTherapist(ctx context.Context, t domain.Therapist) (domain.Therapist, error) {
	err := x.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO therapists (first_name, last_name, specialization, description) VALUES ($1, $2, $3, $4) RETURNING id`,
			t.FirstName, t.LastName, t.Specialization, t.Description,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("insert therapist: %w", err)
		}
		return insertTags(ctx, tx, t.ID, t.Tags)
	})
	if err != nil {
		return domain.Therapist{}, err
	}
	return t, nil
}

const rosterQuery = `
SELECT t.id, t.first_name, t.last_name, t.specialization, t.description,
       COALESCE(array_agg(tt.tag_id ORDER BY tt.tag_id) FILTER (WHERE tt.tag_id IS NOT NULL), '{}')
FROM therapists t
LEFT JOIN therapist_tags tt ON tt.therapist_id = t.id
GROUP BY t.id
ORDER BY t.id`

func (x *TherapistIndex) Roster(ctx context.Context) ([]domain.Therapist, error) {
	rows, err := x.pool.Query(ctx, rosterQuery)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Therapist, 0)
	for rows.Next() {
		var (
			t    domain.Therapist
			tags []int64
		)
		if err := rows.Scan(&t.ID, &t.FirstName, &t.LastName, &t.Specialization, &t.Description, &tags); err != nil {
			return nil, fmt.Errorf("scan therapist: %w", err)
		}
		t.Tags = toTagIDs(tags)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (x *TherapistIndex) TagsOf(ctx context.Context, therapistID int64) ([]domain.TagID, error) {
	var tags []int64
	err := x.pool.QueryRow(ctx, `
		SELECT COALESCE(array_agg(tt.tag_id ORDER BY tt.tag_id) FILTER (WHERE tt.tag_id IS NOT NULL), '{}')
		FROM therapists t
		LEFT JOIN therapist_tags tt ON tt.therapist_id = t.id
		WHERE t.id = $1
		GROUP BY t.id`, therapistID).Scan(&tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTherapistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load therapist tags: %w", err)
	}
	return toTagIDs(tags), nil
}

func (x *TherapistIndex) TherapistsWithTag(ctx context.Context, tagID domain.TagID) ([]domain.TherapistRef, error) {
	rows, err := x.pool.Query(ctx, `
		SELECT t.id, t.first_name, t.last_name
		FROM therapists t
		JOIN therapist_tags tt ON tt.therapist_id = t.id
		WHERE tt.tag_id = $1
		ORDER BY t.id`, tagID)
	if err != nil {
		return nil, fmt.Errorf("therapists with tag: %w", err)
	}
	defer rows.Close()
	out := make([]domain.TherapistRef, 0)
	for rows.Next() {
		var t domain.Therapist
		if err := rows.Scan(&t.ID, &t.FirstName, &t.LastName); err != nil {
			return nil, fmt.Errorf("scan therapist: %w", err)
		}
		out = append(out, t.Ref())
	}
	return out, rows.Err()
}

func (x *TherapistIndex) RemoveTagFromAll(ctx context.Context, tagID domain.TagID) (int, error) {
	tag, err := x.pool.Exec(ctx, `DELETE FROM therapist_tags WHERE tag_id=$1`, tagID)
	if err != nil {
		return 0, fmt.Errorf("remove tag from therapists: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (x *TherapistIndex) SetTags(ctx context.Context, therapistID int64, tags []domain.TagID) error {
	return x.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM therapists WHERE id=$1 FOR UPDATE`, therapistID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTherapistNotFound
		}
		if err != nil {
			return fmt.Errorf("lock therapist: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM therapist_tags WHERE therapist_id=$1`, therapistID); err != nil {
			return fmt.Errorf("clear therapist tags: %w", err)
		}
		return insertTags(ctx, tx, therapistID, tags)
	})
}

func insertTags(ctx context.Context, tx pgx.Tx, therapistID int64, tags []domain.TagID) error {
	if len(tags) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tag := range tags {
		batch.Queue(`INSERT INTO therapist_tags (therapist_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, therapistID, tag)
	}
	results := tx.SendBatch(ctx, batch)
	for range tags {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert therapist tag: %w", err)
		}
	}
	return results.Close()
}

func toTagIDs(ids []int64) []domain.TagID {
	out := make([]domain.TagID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.TagID(id))
	}
	return out
}
