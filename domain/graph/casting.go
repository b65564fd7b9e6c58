package graph

import (
	"context"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
)

// putCasting runs the casting protocol for one (relation, role, player)
// triple:
//
//  1. compute the casting fingerprint H(role-id, player-id)
//  2. reuse the casting indexed on it, or create one and wire it to the
//     player with ROLE_PLAYER
//  3. connect relation -> casting with CASTING unless already connected
//  4. mirror with a SHORTCUT edge relation -> player unless an
//     equivalent one exists
//  5. record the relation in the modified set
func (t *Transaction) putCasting(ctx context.Context, rel *Instance, relType *Type, role *Type, player *Instance) error {
	index := castingIndex(role.TypeID, player.ID())

	cast, err := t.castingByIndex(ctx, index)
	if err != nil {
		return err
	}
	if cast == nil {
		cast, err = t.addCasting(ctx, index, role, player)
		if err != nil {
			return err
		}
	}

	connected, err := t.hasCastingEdge(ctx, rel.ID(), cast.id, role.TypeID)
	if err != nil {
		return err
	}
	if !connected {
		edge, err := t.addEdge(ctx, rel.ID(), cast.id, schema.EdgeCasting)
		if err != nil {
			return err
		}
		if err := t.setEdgeProp(ctx, edge, schema.EdgePropRoleTypeID, formatInt(role.TypeID)); err != nil {
			return err
		}
	}

	if err := t.putShortcutEdge(ctx, rel, relType, role, player); err != nil {
		return err
	}

	t.log.trackCasting(index, cast.id)
	t.log.trackRelation(relVertexIndex(t, ctx, rel), rel)
	castingsCreated.Inc()
	return nil
}

// relVertexIndex reads the relation's stored fingerprint; the role map may
// not be at hand at every call site.
func relVertexIndex(t *Transaction, ctx context.Context, rel *Instance) string {
	v, err := t.vertex(ctx, substrate.VertexID(rel.ID()))
	if err != nil || v == nil {
		return ""
	}
	return v.Prop(string(schema.PropIndex))
}

func (t *Transaction) addCasting(ctx context.Context, index string, role *Type, player *Instance) (*casting, error) {
	v, err := t.addVertex(ctx, schema.KindCasting)
	if err != nil {
		return nil, err
	}
	if err := t.setProps(ctx, v,
		schema.PropIndex, index,
		schema.PropTypeID, formatInt(role.TypeID),
	); err != nil {
		return nil, err
	}

	edge, err := t.addEdge(ctx, ConceptID(v.ID), player.ID(), schema.EdgeRolePlayer)
	if err != nil {
		return nil, err
	}
	if err := t.setEdgeProp(ctx, edge, schema.EdgePropRoleTypeID, formatInt(role.TypeID)); err != nil {
		return nil, err
	}

	return &casting{id: ConceptID(v.ID), index: index, roleTypeID: role.TypeID}, nil
}

func (t *Transaction) castingByIndex(ctx context.Context, index string) (*casting, error) {
	c, err := t.conceptByProperty(ctx, schema.PropIndex, index, true)
	if err != nil || c == nil {
		return nil, err
	}
	cast, ok := c.(*casting)
	if !ok {
		return nil, nil
	}
	return cast, nil
}

func (t *Transaction) hasCastingEdge(ctx context.Context, rel, cast ConceptID, roleTypeID int64) (bool, error) {
	edges, err := t.outEdges(ctx, rel, schema.EdgeCasting)
	if err != nil {
		return false, err
	}
	want := formatInt(roleTypeID)
	for _, e := range edges {
		if e.To == substrate.VertexID(cast) && e.Prop(string(schema.EdgePropRoleTypeID)) == want {
			return true, nil
		}
	}
	return false, nil
}

// putShortcutEdge adds the denormalised relation -> player edge iff no
// equivalent edge exists.
func (t *Transaction) putShortcutEdge(ctx context.Context, rel *Instance, relType *Type, role *Type, player *Instance) error {
	edges, err := t.outEdges(ctx, rel.ID(), schema.EdgeShortcut)
	if err != nil {
		return err
	}
	wantRel := formatInt(relType.TypeID)
	wantRole := formatInt(role.TypeID)
	for _, e := range edges {
		if e.To == substrate.VertexID(player.ID()) &&
			e.Prop(string(schema.EdgePropRelationTypeID)) == wantRel &&
			e.Prop(string(schema.EdgePropRoleTypeID)) == wantRole {
			return nil
		}
	}

	edge, err := t.addEdge(ctx, rel.ID(), player.ID(), schema.EdgeShortcut)
	if err != nil {
		return err
	}
	if err := t.setEdgeProp(ctx, edge, schema.EdgePropRelationTypeID, wantRel); err != nil {
		return err
	}
	return t.setEdgeProp(ctx, edge, schema.EdgePropRoleTypeID, wantRole)
}

// rolePlayers reads a relation's role map back from its castings.
func (t *Transaction) rolePlayers(ctx context.Context, rel ConceptID) (map[int64][]ConceptID, error) {
	edges, err := t.outEdges(ctx, rel, schema.EdgeCasting)
	if err != nil {
		return nil, err
	}

	players := make(map[int64][]ConceptID)
	for _, e := range edges {
		roleID := parseInt(e.Prop(string(schema.EdgePropRoleTypeID)))
		rpEdges, err := t.outEdges(ctx, ConceptID(e.To), schema.EdgeRolePlayer)
		if err != nil {
			return nil, err
		}
		for _, rp := range rpEdges {
			players[roleID] = append(players[roleID], ConceptID(rp.To))
		}
	}
	return players, nil
}

// castingsOf lists a relation's castings.
func (t *Transaction) castingsOf(ctx context.Context, rel ConceptID) ([]*casting, error) {
	edges, err := t.outEdges(ctx, rel, schema.EdgeCasting)
	if err != nil {
		return nil, err
	}
	out := make([]*casting, 0, len(edges))
	for _, e := range edges {
		c, err := t.getConceptRawID(ctx, ConceptID(e.To))
		if err != nil {
			return nil, err
		}
		if cast, ok := c.(*casting); ok {
			out = append(out, cast)
		}
	}
	return out, nil
}

// relationsOf lists the relations connected to a casting.
func (t *Transaction) relationsOf(ctx context.Context, cast ConceptID) ([]*Instance, error) {
	edges, err := t.inEdges(ctx, cast, schema.EdgeCasting)
	if err != nil {
		return nil, err
	}
	out := make([]*Instance, 0, len(edges))
	for _, e := range edges {
		c, err := t.getConceptRawID(ctx, ConceptID(e.From))
		if err != nil {
			return nil, err
		}
		if rel, ok := c.(*Instance); ok && rel.IsRelation() {
			out = append(out, rel)
		}
	}
	return out, nil
}
