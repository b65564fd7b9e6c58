// Package postprocess consumes commit-log payloads after commit: it
// applies instance-count deltas to the shard layout and converges
// duplicate castings and resources onto their indexed vertex. Processing
// is serialized per keyspace by the dispatcher that feeds it.
package postprocess

import (
	"context"
	"errors"
	"log/slog"

	"go.uber.org/fx"

	"github.com/lattice-kb/lattice.graph/domain/graph"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/commitlog"
	"github.com/lattice-kb/lattice.graph/pkg/logger"
)

// Module provides the post-processing service.
var Module = fx.Module("postprocess",
	fx.Provide(NewService),
)

// retryAttempts bounds re-runs of a merge transaction that lost a
// substrate conflict. Each merge step is idempotent, so re-running is
// always safe.
const retryAttempts = 3

// Service reconciles one keyspace engine.
type Service struct {
	graph *graph.Graph
	log   *slog.Logger
}

// NewService creates the reconciler for a keyspace engine.
func NewService(g *graph.Graph, log *slog.Logger) *Service {
	return &Service{
		graph: g,
		log:   log.With(logger.Scope("postprocess"), slog.String("keyspace", g.Keyspace())),
	}
}

// Process applies one commit-log payload end to end.
func (s *Service) Process(ctx context.Context, payload *commitlog.Payload) error {
	if payload == nil || payload.Empty() {
		return nil
	}

	if len(payload.InstanceCounts) > 0 {
		deltas := make(map[string]int64, len(payload.InstanceCounts))
		for _, entry := range payload.InstanceCounts {
			deltas[entry.TypeLabel] += entry.Delta
		}
		if err := s.graph.UpdateTypeShards(ctx, deltas); err != nil {
			return err
		}
	}

	for _, entry := range payload.Castings {
		if err := s.fixEntry(ctx, commitlog.KindCasting, entry); err != nil {
			return err
		}
	}
	for _, entry := range payload.Resources {
		if err := s.fixEntry(ctx, commitlog.KindResource, entry); err != nil {
			return err
		}
	}
	return nil
}

// fixEntry merges the duplicates behind one index fingerprint in its own
// transaction, retrying on substrate conflicts.
func (s *Service) fixEntry(ctx context.Context, kind string, entry commitlog.FixEntry) error {
	if len(entry.ConceptIDs) < 2 {
		return nil
	}

	ids := make([]graph.ConceptID, len(entry.ConceptIDs))
	for i, id := range entry.ConceptIDs {
		ids[i] = graph.ConceptID(id)
	}

	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		merged, err := s.fixOnce(ctx, kind, entry.Index, ids)
		if err == nil {
			if merged {
				s.log.Debug("duplicates merged",
					slog.String("kind", kind),
					slog.String("index", entry.Index),
					slog.Int("candidates", len(ids)))
			}
			return nil
		}
		lastErr = err
		if !errors.Is(err, substrate.ErrConflict) {
			return err
		}
	}
	return lastErr
}

func (s *Service) fixOnce(ctx context.Context, kind, index string, ids []graph.ConceptID) (bool, error) {
	tx, err := s.graph.NewTransaction(ctx, graph.Write)
	if err != nil {
		return false, err
	}
	defer tx.Abort()

	var merged bool
	switch kind {
	case commitlog.KindCasting:
		merged, err = tx.FixDuplicateCastings(ctx, index, ids)
	case commitlog.KindResource:
		merged, err = tx.FixDuplicateResources(ctx, index, ids)
	}
	if err != nil {
		return false, err
	}
	if !merged {
		return false, nil
	}

	if _, err := tx.CommitNoLogs(ctx); err != nil {
		return false, err
	}
	return true, nil
}
