package graph

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/lattice-kb/lattice.graph/internal/config"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/commitlog"
)

// Module provides the default keyspace engine.
var Module = fx.Module("graph",
	fx.Provide(NewDefaultGraph),
	fx.Provide(func(cfg *config.Config, log *slog.Logger) commitlog.Sink {
		return commitlog.NewSink(cfg.Graph.EngineURL, log)
	}),
)

// DefaultKeyspace is the keyspace a bare deployment serves.
const DefaultKeyspace = "lattice"

// NewDefaultGraph opens the engine on the default keyspace.
func NewDefaultGraph(lc fx.Lifecycle, store substrate.Store, cfg *config.Config, sink commitlog.Sink, log *slog.Logger) (*Graph, error) {
	g, err := New(context.Background(), store, cfg.Graph, Options{Keyspace: DefaultKeyspace}, sink, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})

	return g, nil
}
