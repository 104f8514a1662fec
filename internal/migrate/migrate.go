package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql
var migrations embed.FS

// Up applies all pending Postgres migrations.
//
// It returns an error (no log.Fatal) so the caller can decide how to handle it.
func Up(ctx context.Context, dbURL string, log *slog.Logger) error {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("migrations: open db: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil && log != nil {
			log.Error("database close error", "err", err)
		}
	}(db)

	return apply(ctx, db, goose.DialectPostgres, "sql/postgres", log)
}

// UpSQLite applies the SQLite migrations on an already open handle.
func UpSQLite(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	return apply(ctx, db, goose.DialectSQLite3, "sql/sqlite", log)
}

func apply(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string, log *slog.Logger) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migrations: %s: %w", dir, err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: provider: %w", err)
	}

	if log != nil {
		log.Info("running database migrations", "dialect", dialect)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations: goose up: %w", err)
	}
	if log != nil {
		log.Info("database migrations applied", "dialect", dialect, "applied", len(results))
	}
	return nil
}
