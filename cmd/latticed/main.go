// Package main runs the lattice graph engine as an embedded daemon: it
// opens the configured substrate, bootstraps the default keyspace, and
// keeps the post-processing reconciler available in process.
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/lattice-kb/lattice.graph/domain/graph"
	"github.com/lattice-kb/lattice.graph/domain/postprocess"
	"github.com/lattice-kb/lattice.graph/internal/config"
	"github.com/lattice-kb/lattice.graph/internal/database"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/internal/substrate/badgerstore"
	"github.com/lattice-kb/lattice.graph/internal/substrate/pgstore"
	"github.com/lattice-kb/lattice.graph/pkg/logger"

	"github.com/uptrace/bun"
)

func main() {
	// Load .env files if present (for local development). Load() won't
	// overwrite existing vars, Overload() will.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.NewConfig()
	if err != nil {
		slog.Error("invalid configuration", logger.Error(err))
		return
	}

	opts := []fx.Option{
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		logger.Module,
		config.Module,
		graph.Module,
		postprocess.Module,

		fx.Invoke(func(g *graph.Graph, svc *postprocess.Service, log *slog.Logger) {
			log.Info("graph engine ready",
				slog.String("keyspace", g.Keyspace()),
				slog.String("substrate", cfg.Substrate))
		}),
	}

	switch cfg.Substrate {
	case config.SubstratePostgres:
		opts = append(opts,
			database.Module,
			fx.Provide(func(db *bun.DB, cfg *config.Config, log *slog.Logger) (substrate.Store, error) {
				if err := pgstore.Migrate(context.Background(), db, log); err != nil {
					return nil, err
				}
				return pgstore.New(db, graph.DefaultKeyspace, log), nil
			}),
		)
	default:
		opts = append(opts,
			fx.Provide(func(cfg *config.Config, log *slog.Logger) (substrate.Store, error) {
				return badgerstore.Open(badgerstore.Config{
					Dir:        cfg.Badger.Dir,
					InMemory:   cfg.Badger.InMemory,
					SyncWrites: cfg.Badger.SyncWrites,
				}, log)
			}),
		)
	}

	fx.New(opts...).Run()
}
