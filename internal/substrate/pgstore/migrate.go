package pgstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/lattice-kb/lattice.graph/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the substrate tables up to date.
func Migrate(ctx context.Context, db *bun.DB, log *slog.Logger) error {
	log = log.With(logger.Scope("substrate.pg.migrate"))

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, "up", db.DB, "migrations"); err != nil {
		return fmt.Errorf("run substrate migrations: %w", err)
	}

	log.Info("substrate migrations applied")
	return nil
}
