package graph

import (
	"context"
	"fmt"

	"github.com/lattice-kb/lattice.graph/domain/schema"
)

// validate walks the modified set and checks every invariant, collecting
// human-readable failures. It never stops at the first one: the caller
// gets the whole list in a single aggregated error.
func (t *Transaction) validate(ctx context.Context) []string {
	var failures []string
	report := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	for _, inst := range t.createdInstances {
		t.validateInstance(ctx, inst, report)
	}

	seenRelations := make(map[ConceptID]bool)
	for _, rel := range t.log.modifiedRelations {
		if rel == nil || seenRelations[rel.ID()] {
			continue
		}
		seenRelations[rel.ID()] = true
		t.validateRelation(ctx, rel, report)
	}

	return failures
}

func (t *Transaction) validateInstance(ctx context.Context, inst *Instance, report func(string, ...any)) {
	// Invariant: exactly one ISA edge to a shard of exactly one type.
	isa, err := t.outEdges(ctx, inst.ID(), schema.EdgeIsa)
	if err != nil {
		report("instance [%s]: cannot read ISA edges: %v", inst.ID(), err)
		return
	}
	switch len(isa) {
	case 0:
		report("instance [%s] of type %q is not connected to any shard", inst.ID(), inst.TypeLabel)
	case 1:
		shardEdges, err := t.outEdges(ctx, ConceptID(isa[0].To), schema.EdgeShard)
		if err != nil || len(shardEdges) != 1 {
			report("instance [%s] of type %q points at a vertex that is not a shard", inst.ID(), inst.TypeLabel)
		}
	default:
		report("instance [%s] of type %q is connected to %d shards", inst.ID(), inst.TypeLabel, len(isa))
	}

	if inst.IsResource() {
		t.validateResource(ctx, inst, report)
	}
}

func (t *Transaction) validateResource(ctx context.Context, res *Instance, report func(string, ...any)) {
	typ, err := t.GetType(ctx, res.TypeLabel)
	if err != nil || typ == nil {
		report("resource [%s]: direct type %q cannot be resolved", res.ID(), res.TypeLabel)
		return
	}
	if res.DataType != typ.DataType {
		report("resource [%s] holds a %s value but type %q is declared %s",
			res.ID(), res.DataType, typ.Label, typ.DataType)
	}
}

func (t *Transaction) validateRelation(ctx context.Context, rel *Instance, report func(string, ...any)) {
	players, err := t.rolePlayers(ctx, rel.ID())
	if err != nil {
		report("relation [%s]: cannot read role players: %v", rel.ID(), err)
		return
	}

	// Invariant: a committed relation has at least one role player.
	total := 0
	for _, ids := range players {
		total += len(ids)
	}
	if total == 0 {
		report("relation [%s] of type %q has no role players", rel.ID(), rel.TypeLabel)
	}

	// Invariant: every role played is declared on the relation type.
	relType, err := t.GetType(ctx, rel.TypeLabel)
	if err != nil || relType == nil {
		report("relation [%s]: direct type %q cannot be resolved", rel.ID(), rel.TypeLabel)
		return
	}
	for roleID := range players {
		if !relType.DeclaresRole(roleID) {
			report("relation [%s] plays role id %d which type %q does not declare", rel.ID(), roleID, relType.Label)
		}
	}

	// Invariant: every SHORTCUT edge is mirrored by a casting with the
	// same role on the same relation.
	shortcuts, err := t.outEdges(ctx, rel.ID(), schema.EdgeShortcut)
	if err != nil {
		report("relation [%s]: cannot read shortcut edges: %v", rel.ID(), err)
		return
	}
	for _, sc := range shortcuts {
		roleID := parseInt(sc.Prop(string(schema.EdgePropRoleTypeID)))
		mirrored := false
		for _, playerID := range players[roleID] {
			if playerID == ConceptID(sc.To) {
				mirrored = true
				break
			}
		}
		if !mirrored {
			report("relation [%s] has a shortcut to [%s] for role id %d without a matching casting",
				rel.ID(), sc.To, roleID)
		}
	}
}
