package graph

import (
	"context"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
)

// initialiseMetaOntology writes the bootstrap types into a fresh
// keyspace: the eight meta labels with their fixed ids, the SUB spine
// rooted at `concept`, and shards for the two rule subclasses, which are
// the only meta types with direct instances.
func (t *Transaction) initialiseMetaOntology(ctx context.Context) error {
	vertices := make(map[string]*substrate.Vertex, len(schema.MetaTypes))
	for _, mt := range schema.MetaTypes {
		v, err := t.addTypeVertex(ctx, mt.ID, mt.Label, mt.Kind)
		if err != nil {
			return err
		}
		vertices[mt.Label] = v
	}

	abstract := []string{
		schema.MetaEntityType.Label,
		schema.MetaRelationType.Label,
		schema.MetaResourceType.Label,
		schema.MetaRoleType.Label,
		schema.MetaRuleType.Label,
	}
	for _, label := range abstract {
		if err := t.setProps(ctx, vertices[label], schema.PropIsAbstract, "true"); err != nil {
			return err
		}
	}

	subEdges := [][2]string{
		{schema.MetaEntityType.Label, schema.MetaConcept.Label},
		{schema.MetaRelationType.Label, schema.MetaConcept.Label},
		{schema.MetaResourceType.Label, schema.MetaConcept.Label},
		{schema.MetaRoleType.Label, schema.MetaConcept.Label},
		{schema.MetaRuleType.Label, schema.MetaConcept.Label},
		{schema.MetaInferenceRule.Label, schema.MetaRuleType.Label},
		{schema.MetaConstraintRule.Label, schema.MetaRuleType.Label},
	}
	for _, pair := range subEdges {
		from, to := vertices[pair[0]], vertices[pair[1]]
		if _, err := t.addEdge(ctx, ConceptID(from.ID), ConceptID(to.ID), schema.EdgeSub); err != nil {
			return err
		}
	}

	// The rule subclasses take instances, so they get shards at birth.
	for _, label := range []string{schema.MetaInferenceRule.Label, schema.MetaConstraintRule.Label} {
		typ, err := buildType(vertices[label])
		if err != nil {
			return err
		}
		if err := t.createShard(ctx, typ); err != nil {
			return err
		}
	}

	for _, mt := range schema.MetaTypes {
		if _, ok := t.log.cachedTypes[mt.Label]; ok {
			continue // the sharded rule subclasses are already cached
		}
		typ, err := buildType(vertices[mt.Label])
		if err != nil {
			return err
		}
		t.log.cacheType(typ)
	}
	return nil
}
