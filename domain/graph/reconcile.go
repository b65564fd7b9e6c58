package graph

import (
	"context"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
)

// This file holds the merge primitives post-processing runs after commit.
// Each step is idempotent: a crash-restart mid-merge leaves a state the
// next pass can complete.

// FixDuplicateCastings merges the duplicate castings recorded under one
// index fingerprint. Reports whether anything was merged (and therefore a
// commit is required).
func (t *Transaction) FixDuplicateCastings(ctx context.Context, index string, ids []ConceptID) (bool, error) {
	duplicates, err := t.liveCastings(ctx, ids)
	if err != nil {
		return false, err
	}

	main, err := t.castingByIndex(ctx, index)
	if err != nil {
		return false, err
	}
	if main == nil {
		// Index entry lost; nothing is authoritative, so nothing merges.
		return false, nil
	}

	others := make([]*casting, 0, len(duplicates))
	for _, c := range duplicates {
		if c.id != main.id {
			others = append(others, c)
		}
	}
	if len(others) == 0 {
		return false, nil
	}

	duplicateRelations, err := t.mergeCastings(ctx, main, others)
	if err != nil {
		return false, err
	}

	for _, rel := range duplicateRelations {
		if err := t.removeVertex(ctx, rel.ID()); err != nil {
			return false, err
		}
	}

	// Defensive write: the merge must leave the index pointing at main.
	if err := t.reassertIndex(ctx, main.id, index); err != nil {
		return false, err
	}

	castingsMerged.Add(float64(len(others)))
	return true, nil
}

// mergeCastings transfers every CASTING edge from the duplicates onto
// main, then deletes the duplicates. Relations that turn out to be
// equivalent to one already on main are returned for deletion.
func (t *Transaction) mergeCastings(ctx context.Context, main *casting, others []*casting) ([]*Instance, error) {
	mainRelations, err := t.relationsOf(ctx, main.id)
	if err != nil {
		return nil, err
	}

	var relationsToClean []*Instance
	for _, other := range others {
		otherRelations, err := t.relationsOf(ctx, other.id)
		if err != nil {
			return nil, err
		}

		for _, otherRel := range otherRelations {
			equivalent := false
			for _, mainRel := range mainRelations {
				same, err := t.relationsEqual(ctx, mainRel, otherRel)
				if err != nil {
					return nil, err
				}
				if same {
					relationsToClean = append(relationsToClean, otherRel)
					equivalent = true
					break
				}
			}

			if !equivalent {
				edge, err := t.addEdge(ctx, otherRel.ID(), main.id, schema.EdgeCasting)
				if err != nil {
					return nil, err
				}
				if err := t.setEdgeProp(ctx, edge, schema.EdgePropRoleTypeID, formatInt(main.roleTypeID)); err != nil {
					return nil, err
				}
				mainRelations = append(mainRelations, otherRel)
			}
		}

		if err := t.removeVertex(ctx, other.id); err != nil {
			return nil, err
		}
	}

	return relationsToClean, nil
}

// relationsEqual reports whether two relations carry the same type and
// role players.
func (t *Transaction) relationsEqual(ctx context.Context, a, b *Instance) (bool, error) {
	if a.TypeLabel != b.TypeLabel {
		return false, nil
	}
	aPlayers, err := t.rolePlayers(ctx, a.ID())
	if err != nil {
		return false, err
	}
	bPlayers, err := t.rolePlayers(ctx, b.ID())
	if err != nil {
		return false, err
	}
	return relationIndex(a.TypeID, aPlayers) == relationIndex(b.TypeID, bPlayers), nil
}

// FixDuplicateResources merges the duplicate resources recorded under one
// index fingerprint, copying ownership relations onto the indexed
// resource before deleting the duplicates.
func (t *Transaction) FixDuplicateResources(ctx context.Context, index string, ids []ConceptID) (bool, error) {
	duplicates, err := t.liveResources(ctx, ids)
	if err != nil {
		return false, err
	}

	mainConcept, err := t.conceptByProperty(ctx, schema.PropIndex, index, true)
	if err != nil {
		return false, err
	}
	main, ok := mainConcept.(*Instance)
	if !ok || !main.IsResource() {
		return false, nil
	}

	others := make([]*Instance, 0, len(duplicates))
	for _, r := range duplicates {
		if r.ID() != main.ID() {
			others = append(others, r)
		}
	}
	if len(others) == 0 {
		return false, nil
	}

	for _, other := range others {
		// Shortcut edges of the doomed resource go first so the copies
		// below recreate them uniquely.
		shortcuts, err := t.inEdges(ctx, other.ID(), schema.EdgeShortcut)
		if err != nil {
			return false, err
		}
		for _, sc := range shortcuts {
			if err := t.removeEdge(ctx, sc.ID); err != nil {
				return false, err
			}
		}

		otherCastings, err := t.castingsWithPlayer(ctx, other.ID())
		if err != nil {
			return false, err
		}

		relationSeen := make(map[ConceptID]bool)
		for _, cast := range otherCastings {
			relations, err := t.relationsOf(ctx, cast.id)
			if err != nil {
				return false, err
			}
			for _, rel := range relations {
				if relationSeen[rel.ID()] {
					continue
				}
				relationSeen[rel.ID()] = true
				if err := t.copyResourceRelation(ctx, main, other, rel); err != nil {
					return false, err
				}
			}
		}

		// Delete the castings directly so copied relations stay intact.
		for _, cast := range otherCastings {
			if err := t.removeVertex(ctx, cast.id); err != nil {
				return false, err
			}
		}
		if err := t.removeVertex(ctx, other.ID()); err != nil {
			return false, err
		}
	}

	if err := t.reassertIndex(ctx, main.ID(), index); err != nil {
		return false, err
	}

	resourcesMerged.Add(float64(len(others)))
	return true, nil
}

// copyResourceRelation replays one of the duplicate's relations against
// the main resource: if the replaced role map already names an existing
// relation the duplicate relation dies, otherwise its role-player edges
// are repointed by issuing fresh castings on the main resource.
func (t *Transaction) copyResourceRelation(ctx context.Context, main, other, rel *Instance) error {
	players, err := t.rolePlayers(ctx, rel.ID())
	if err != nil {
		return err
	}

	// Replace every occurrence of other with main.
	var rolesOfResource []int64
	for roleID, ids := range players {
		for i, id := range ids {
			if id == other.ID() {
				ids[i] = main.ID()
				rolesOfResource = append(rolesOfResource, roleID)
			}
		}
		players[roleID] = ids
	}

	newIndex := relationIndex(rel.TypeID, players)

	found, err := t.relationByIndexLookup(ctx, newIndex)
	if err != nil {
		return err
	}

	if found != nil && found.ID() != rel.ID() {
		// An equivalent relation exists: the duplicate's relation dies,
		// its castings stay for independent deduplication.
		if err := t.removeVertex(ctx, rel.ID()); err != nil {
			return err
		}
		t.log.trackRelation(newIndex, found)
		return nil
	}

	relType, err := t.GetType(ctx, rel.TypeLabel)
	if err != nil {
		return err
	}
	if relType == nil {
		return nil
	}
	for _, roleID := range rolesOfResource {
		role, err := t.typeByIDIndex(ctx, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			continue
		}
		if err := t.putCasting(ctx, rel, relType, role, main); err != nil {
			return err
		}
	}

	// The relation now answers to the replaced role map.
	v, err := t.vertex(ctx, substrate.VertexID(rel.ID()))
	if err != nil {
		return err
	}
	if v != nil {
		if err := t.setProps(ctx, v, schema.PropIndex, newIndex); err != nil {
			return err
		}
	}
	t.log.trackRelation(newIndex, rel)
	return nil
}

func (t *Transaction) relationByIndexLookup(ctx context.Context, index string) (*Instance, error) {
	if rel, ok := t.log.relationByIndex(index); ok {
		return rel, nil
	}
	c, err := t.conceptByProperty(ctx, schema.PropIndex, index, true)
	if err != nil || c == nil {
		return nil, err
	}
	rel, ok := c.(*Instance)
	if !ok || !rel.IsRelation() {
		return nil, nil
	}
	return rel, nil
}

func (t *Transaction) liveCastings(ctx context.Context, ids []ConceptID) ([]*casting, error) {
	out := make([]*casting, 0, len(ids))
	for _, id := range ids {
		c, err := t.getConceptRawID(ctx, id)
		if err != nil {
			return nil, err
		}
		if cast, ok := c.(*casting); ok {
			out = append(out, cast)
		}
	}
	return out, nil
}

func (t *Transaction) liveResources(ctx context.Context, ids []ConceptID) ([]*Instance, error) {
	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		c, err := t.getConceptRawID(ctx, id)
		if err != nil {
			return nil, err
		}
		if inst, ok := c.(*Instance); ok && inst.IsResource() {
			out = append(out, inst)
		}
	}
	return out, nil
}

// castingsWithPlayer lists the castings whose role player is the given
// instance.
func (t *Transaction) castingsWithPlayer(ctx context.Context, player ConceptID) ([]*casting, error) {
	edges, err := t.inEdges(ctx, player, schema.EdgeRolePlayer)
	if err != nil {
		return nil, err
	}
	out := make([]*casting, 0, len(edges))
	for _, e := range edges {
		c, err := t.getConceptRawID(ctx, ConceptID(e.From))
		if err != nil {
			return nil, err
		}
		if cast, ok := c.(*casting); ok {
			out = append(out, cast)
		}
	}
	return out, nil
}

// typeByIDIndex resolves a type through the TYPE_ID index, skipping the
// instance vertices that share the key.
func (t *Transaction) typeByIDIndex(ctx context.Context, typeID int64) (*Type, error) {
	concepts, err := t.conceptsByProperty(ctx, schema.PropTypeID, formatInt(typeID))
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		if typ, ok := c.(*Type); ok {
			if err := t.loadTypeRoles(ctx, typ); err != nil {
				return nil, err
			}
			return typ, nil
		}
	}
	return nil, nil
}

func (t *Transaction) reassertIndex(ctx context.Context, id ConceptID, index string) error {
	v, err := t.vertex(ctx, substrate.VertexID(id))
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return t.setProps(ctx, v, schema.PropIndex, index)
}
