package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_commits_total",
		Help: "Committed transactions by kind.",
	}, []string{"kind"})

	validationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_validation_failures_total",
		Help: "Invariant failures reported at commit time.",
	})

	typesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_types_created_total",
		Help: "Type vertices created.",
	})

	castingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_castings_created_total",
		Help: "Casting protocol executions.",
	})

	shardsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_shards_created_total",
		Help: "Shard vertices created, bootstrap included.",
	})

	ontologyCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_ontology_cache_hits_total",
		Help: "Type lookups served from the transaction or ontology cache.",
	})

	ontologyCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_ontology_cache_misses_total",
		Help: "Type lookups that fell through to the substrate index.",
	})

	ontologyPromotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_ontology_promotions_total",
		Help: "Type snapshots promoted into the shared ontology cache.",
	})

	castingsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_castings_merged_total",
		Help: "Duplicate castings merged by post-processing.",
	})

	resourcesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_resources_merged_total",
		Help: "Duplicate resources merged by post-processing.",
	})
)
