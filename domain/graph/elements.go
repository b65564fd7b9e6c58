package graph

import (
	"context"
	"errors"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/apperror"
)

// This file is the thin facade between the engine and the substrate. All
// substrate access goes through these helpers so closed/read-only checks
// and error mapping happen in exactly one place.

func (t *Transaction) checkOpen() error {
	if t.closed {
		if t.closedReason != "" {
			return apperror.ErrGraphClosed.WithMessage(t.closedReason)
		}
		return apperror.ErrGraphClosed
	}
	return nil
}

func (t *Transaction) checkMutation() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.kind == Read {
		return apperror.ErrReadOnly.WithMessagef("keyspace %q was opened read-only", t.graph.keyspace)
	}
	return nil
}

// addVertex creates a vertex and immediately mirrors its raw id into the
// ID property; some substrates expose ids only post-flush, and the ID
// index is what concept lookup runs on.
func (t *Transaction) addVertex(ctx context.Context, kind schema.BaseKind) (*substrate.Vertex, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	v, err := t.sub.AddVertex(ctx, string(kind))
	if err != nil {
		return nil, substrateErr(err)
	}
	if err := t.sub.SetProperty(ctx, v.ID, string(schema.PropID), string(v.ID)); err != nil {
		return nil, substrateErr(err)
	}
	v.Props[string(schema.PropID)] = string(v.ID)
	return v, nil
}

// addTypeVertex creates a vertex occupying a type id.
func (t *Transaction) addTypeVertex(ctx context.Context, typeID int64, label string, kind schema.BaseKind) (*substrate.Vertex, error) {
	v, err := t.addVertex(ctx, kind)
	if err != nil {
		return nil, err
	}
	if err := t.setProps(ctx, v,
		schema.PropTypeLabel, label,
		schema.PropTypeID, formatInt(typeID),
	); err != nil {
		return nil, err
	}
	return v, nil
}

// setProps sets key/value pairs on a vertex, keeping the local snapshot
// in sync.
func (t *Transaction) setProps(ctx context.Context, v *substrate.Vertex, kv ...any) error {
	for i := 0; i < len(kv); i += 2 {
		key := string(kv[i].(schema.PropertyKey))
		value := kv[i+1].(string)
		if err := t.sub.SetProperty(ctx, v.ID, key, value); err != nil {
			return substrateErr(err)
		}
		v.Props[key] = value
	}
	return nil
}

func (t *Transaction) vertex(ctx context.Context, id substrate.VertexID) (*substrate.Vertex, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	v, err := t.sub.VertexByID(ctx, id)
	if errors.Is(err, substrate.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, substrateErr(err)
	}
	return v, nil
}

// conceptByProperty resolves the unique concept indexed under key=value.
// With bypassDuplicates the first indexed vertex wins; otherwise a second
// match is a duplicate-concept failure.
func (t *Transaction) conceptByProperty(ctx context.Context, key schema.PropertyKey, value string, bypassDuplicates bool) (Concept, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	vertices, err := t.sub.VerticesByProperty(ctx, string(key), value)
	if err != nil {
		return nil, substrateErr(err)
	}
	if len(vertices) == 0 {
		return nil, nil
	}
	if len(vertices) > 1 && !bypassDuplicates {
		return nil, apperror.ErrDuplicateConcept.WithMessagef("%d concepts indexed under %s=%q", len(vertices), key, value)
	}
	return buildConcept(vertices[0])
}

// conceptsByProperty resolves every concept indexed under key=value.
func (t *Transaction) conceptsByProperty(ctx context.Context, key schema.PropertyKey, value string) ([]Concept, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	vertices, err := t.sub.VerticesByProperty(ctx, string(key), value)
	if err != nil {
		return nil, substrateErr(err)
	}
	out := make([]Concept, 0, len(vertices))
	for _, v := range vertices {
		c, err := buildConcept(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// typeByLabelIndex resolves a type through the label index, skipping
// instance vertices that share the TYPE_LABEL key.
func (t *Transaction) typeByLabelIndex(ctx context.Context, label string) (*Type, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	vertices, err := t.sub.VerticesByProperty(ctx, string(schema.PropTypeLabel), label)
	if err != nil {
		return nil, substrateErr(err)
	}

	var found *Type
	for _, v := range vertices {
		if !schema.BaseKind(v.Kind).IsTypeKind() || v.Prop(string(schema.PropIsShard)) == "true" {
			continue
		}
		typ, err := buildType(v)
		if err != nil {
			return nil, err
		}
		if found != nil && !t.bypassDuplicates() {
			return nil, apperror.ErrDuplicateConcept.WithMessagef("label %q names more than one type", label)
		}
		if found == nil {
			found = typ
		}
	}
	if found != nil {
		if err := t.loadTypeRoles(ctx, found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// loadTypeRoles fills a relation type's role list from its HAS_ROLE
// edges. Freshly-resolved types need this; cached clones carry the list
// already.
func (t *Transaction) loadTypeRoles(ctx context.Context, typ *Type) error {
	if typ.kind != schema.KindRelationType {
		return nil
	}
	edges, err := t.outEdges(ctx, typ.ID(), schema.EdgeHasRole)
	if err != nil {
		return err
	}
	typ.Roles = typ.Roles[:0]
	for _, e := range edges {
		roleVertex, err := t.vertex(ctx, e.To)
		if err != nil {
			return err
		}
		if roleVertex == nil {
			continue
		}
		typ.Roles = append(typ.Roles, parseInt(roleVertex.Prop(string(schema.PropTypeID))))
	}
	return nil
}

func (t *Transaction) addEdge(ctx context.Context, from, to ConceptID, label schema.EdgeLabel) (*substrate.Edge, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	e, err := t.sub.AddEdge(ctx, substrate.VertexID(from), substrate.VertexID(to), string(label))
	if err != nil {
		return nil, substrateErr(err)
	}
	return e, nil
}

func (t *Transaction) setEdgeProp(ctx context.Context, e *substrate.Edge, key schema.EdgePropertyKey, value string) error {
	if err := t.sub.SetEdgeProperty(ctx, e.ID, string(key), value); err != nil {
		return substrateErr(err)
	}
	e.Props[string(key)] = value
	return nil
}

func (t *Transaction) outEdges(ctx context.Context, id ConceptID, label schema.EdgeLabel) ([]*substrate.Edge, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	edges, err := t.sub.OutEdges(ctx, substrate.VertexID(id), string(label))
	if err != nil {
		return nil, substrateErr(err)
	}
	return edges, nil
}

func (t *Transaction) inEdges(ctx context.Context, id ConceptID, label schema.EdgeLabel) ([]*substrate.Edge, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	edges, err := t.sub.InEdges(ctx, substrate.VertexID(id), string(label))
	if err != nil {
		return nil, substrateErr(err)
	}
	return edges, nil
}

func (t *Transaction) removeEdge(ctx context.Context, id substrate.EdgeID) error {
	if err := t.checkMutation(); err != nil {
		return err
	}
	if err := t.sub.RemoveEdge(ctx, id); err != nil && !errors.Is(err, substrate.ErrNotFound) {
		return substrateErr(err)
	}
	return nil
}

// removeVertex deletes a concept's vertex outright, incident edges
// included. Reconciliation is the only caller.
func (t *Transaction) removeVertex(ctx context.Context, id ConceptID) error {
	if err := t.checkMutation(); err != nil {
		return err
	}
	t.log.removeConcept(id)
	if err := t.sub.RemoveVertex(ctx, substrate.VertexID(id)); err != nil && !errors.Is(err, substrate.ErrNotFound) {
		return substrateErr(err)
	}
	return nil
}

func (t *Transaction) bypassDuplicates() bool {
	return t.kind == Batch || t.graph.batch
}

func substrateErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrSubstrate.WithInternal(err)
}
