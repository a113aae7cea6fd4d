package postgres

import (
	"context"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"example.com/healthprofile/internal/persistence/migrate"
	"example.com/healthprofile/internal/persistence/postgres/migrations"
)

// Migrate brings the schema behind pool up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrate.Up(ctx, db, goose.DialectPostgres, fs.FS(migrations.FS))
}
