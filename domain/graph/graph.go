package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/config"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/commitlog"
	"github.com/lattice-kb/lattice.graph/pkg/logger"
	"github.com/lattice-kb/lattice.graph/pkg/ttlcache"
)

// TxKind selects the transaction mode.
type TxKind int

const (
	// Read transactions reject every mutation.
	Read TxKind = iota
	// Write is the interactive mode.
	Write
	// Batch is the loading mode: duplicate checks relaxed on indexed
	// lookups. The ontology cache expiry is chosen per engine by
	// Options.BatchLoading, not per transaction.
	Batch
)

func (k TxKind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Batch:
		return "batch"
	}
	return fmt.Sprintf("TxKind(%d)", int(k))
}

// Options configure a keyspace engine.
type Options struct {
	Keyspace string

	// BatchLoading selects the batch ontology-cache expiry for the whole
	// engine instance.
	BatchLoading bool
}

// Graph is the transaction engine for one keyspace. It owns the shared
// ontology cache, the only state shared between transactions, and the
// commit-log sink. Transactions are explicit values; concurrent sessions
// open separate transactions and never share transaction-local state.
type Graph struct {
	keyspace string
	store    substrate.Store
	cfg      config.GraphConfig
	batch    bool
	ontology *ttlcache.Cache[string, *Type]
	sink     commitlog.Sink
	log      *slog.Logger
}

// New opens the engine for a keyspace, bootstrapping the meta ontology on
// first use.
func New(ctx context.Context, store substrate.Store, cfg config.GraphConfig, opts Options, sink commitlog.Sink, log *slog.Logger) (*Graph, error) {
	if opts.Keyspace == "" {
		return nil, fmt.Errorf("keyspace is required")
	}

	expiry := cfg.OntologyCacheTimeoutNormal
	if opts.BatchLoading {
		expiry = cfg.OntologyCacheTimeoutBatch
	}

	g := &Graph{
		keyspace: opts.Keyspace,
		store:    store,
		cfg:      cfg,
		batch:    opts.BatchLoading,
		ontology: ttlcache.New[string, *Type](cfg.OntologyCacheMaxEntries, expiry),
		sink:     sink,
		log:      log.With(logger.Scope("graph"), slog.String("keyspace", opts.Keyspace)),
	}

	if err := g.bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap keyspace %q: %w", opts.Keyspace, err)
	}
	return g, nil
}

// Keyspace returns the keyspace this engine is bound to.
func (g *Graph) Keyspace() string { return g.keyspace }

// NewTransaction opens a transaction of the given kind. The caller owns
// the value; Abort is safe to defer.
func (g *Graph) NewTransaction(ctx context.Context, kind TxKind) (*Transaction, error) {
	sub, err := g.store.Begin(ctx, kind == Read)
	if err != nil {
		return nil, substrateErr(err)
	}
	return &Transaction{
		graph: g,
		kind:  kind,
		sub:   sub,
		log:   newTxLog(g.ontology.Snapshot()),
	}, nil
}

// bootstrap initialises the meta ontology on a fresh keyspace and seeds
// the ontology cache either way.
func (g *Graph) bootstrap(ctx context.Context) error {
	tx, err := g.NewTransaction(ctx, Write)
	if err != nil {
		return err
	}
	defer tx.Abort()

	existing, err := tx.typeByLabelIndex(ctx, schema.MetaConcept.Label)
	if err != nil {
		return err
	}

	if existing == nil {
		if err := tx.initialiseMetaOntology(ctx); err != nil {
			return err
		}
		g.log.Info("meta ontology initialised")
	}

	// Warm the shared cache with the meta types.
	for _, mt := range schema.MetaTypes {
		typ, err := tx.typeByLabelIndex(ctx, mt.Label)
		if err != nil {
			return err
		}
		if typ == nil {
			return fmt.Errorf("meta type %q missing after bootstrap", mt.Label)
		}
		g.ontology.Put(typ.Label, typ)
	}

	if existing == nil {
		return tx.commitInternal(ctx)
	}
	return nil
}

// promote publishes a transaction's accepted type entries into the shared
// cache. Each value is cloned so the published snapshot stays immutable
// even if the caller keeps mutating its transaction-local copy.
func (g *Graph) promote(l *txLog) {
	for label, typ := range l.cachedTypes {
		g.ontology.Put(label, typ.clone())
	}
	ontologyPromotions.Add(float64(len(l.cachedTypes)))
}

// UpdateTypeShards applies post-commit instance-count deltas. When a
// type's count crosses the sharding threshold the count resets to zero and
// one new shard is linked, whatever the size of the delta. Re-running a
// delta smaller than the threshold after the reset therefore cannot create
// a second shard for the same crossing; a delta at or above the threshold
// links a new shard on every run.
func (g *Graph) UpdateTypeShards(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := g.NewTransaction(ctx, Write)
	if err != nil {
		return err
	}
	defer tx.Abort()

	for label, delta := range deltas {
		if delta == 0 {
			continue
		}
		typ, err := tx.GetType(ctx, label)
		if err != nil {
			return err
		}
		if typ == nil {
			g.log.Warn("instance count delta for unknown type", slog.String("type_label", label))
			continue
		}

		newCount := typ.InstanceCount + delta
		if newCount < g.cfg.ShardingThreshold {
			if err := tx.setInstanceCount(ctx, typ, newCount); err != nil {
				return err
			}
		} else {
			if err := tx.setInstanceCount(ctx, typ, 0); err != nil {
				return err
			}
			if err := tx.createShard(ctx, typ); err != nil {
				return err
			}
			g.log.Debug("type sharded",
				slog.String("type_label", label),
				slog.Int64("count", newCount))
		}
	}

	return tx.commitInternal(ctx)
}
