package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_init.sql
var initSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, initSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS therapist_tags;
				DROP TABLE IF EXISTS therapists;
				DROP TABLE IF EXISTS tags;
				ALTER TABLE IF EXISTS quizzes DROP CONSTRAINT IF EXISTS quizzes_published_draft_id_fkey;
				DROP TABLE IF EXISTS quiz_drafts;
				DROP TABLE IF EXISTS quizzes;
			`)
			return err
		},
	)
}
