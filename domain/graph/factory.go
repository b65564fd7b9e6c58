package graph

import (
	"strconv"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/apperror"
)

// buildConcept rebuilds a typed concept from a raw vertex using the
// base-kind discriminator. A vertex with a missing or unknown kind means
// the graph is corrupt.
func buildConcept(v *substrate.Vertex) (Concept, error) {
	if v.Kind == "" {
		return nil, apperror.ErrSubstrate.WithMessagef("corrupt graph: vertex %s has no base kind", v.ID)
	}

	kind := schema.BaseKind(v.Kind)

	if v.Prop(string(schema.PropIsShard)) == "true" {
		return &shard{id: ConceptID(v.ID), owner: kind}, nil
	}

	switch {
	case kind.IsTypeKind():
		return buildType(v)
	case kind == schema.KindCasting:
		return &casting{
			id:         ConceptID(v.ID),
			index:      v.Prop(string(schema.PropIndex)),
			roleTypeID: parseInt(v.Prop(string(schema.PropTypeID))),
		}, nil
	case kind == schema.KindEntity, kind == schema.KindRelation, kind == schema.KindResource, kind == schema.KindRule:
		return buildInstance(v, kind)
	}

	return nil, apperror.ErrSubstrate.WithMessagef("corrupt graph: vertex %s has unknown base kind %q", v.ID, v.Kind)
}

func buildType(v *substrate.Vertex) (*Type, error) {
	t := &Type{
		id:            ConceptID(v.ID),
		kind:          schema.BaseKind(v.Kind),
		TypeID:        parseInt(v.Prop(string(schema.PropTypeID))),
		Label:         v.Prop(string(schema.PropTypeLabel)),
		Abstract:      v.Prop(string(schema.PropIsAbstract)) == "true",
		Implicit:      v.Prop(string(schema.PropIsImplicit)) == "true",
		InstanceCount: parseInt(v.Prop(string(schema.PropInstanceCount))),
		CurrentShard:  substrate.VertexID(v.Prop(string(schema.PropCurrentShard))),
	}
	if dt := v.Prop(string(schema.PropDataType)); dt != "" {
		t.DataType = schema.DataType(dt)
		if !t.DataType.Valid() {
			return nil, apperror.ErrSubstrate.WithMessagef("corrupt graph: type %q declares unknown datatype %q", t.Label, dt)
		}
	}
	return t, nil
}

func buildInstance(v *substrate.Vertex, kind schema.BaseKind) (*Instance, error) {
	inst := &Instance{
		id:        ConceptID(v.ID),
		kind:      kind,
		TypeID:    parseInt(v.Prop(string(schema.PropTypeID))),
		TypeLabel: v.Prop(string(schema.PropTypeLabel)),
	}

	if kind == schema.KindResource {
		for _, dt := range schema.DataTypes {
			if encoded, ok := v.Props[string(dt.ValueProperty())]; ok {
				value, err := dt.DecodeValue(encoded)
				if err != nil {
					return nil, apperror.ErrSubstrate.WithMessagef("corrupt graph: resource %s has malformed %s value", v.ID, dt).WithInternal(err)
				}
				inst.DataType = dt
				inst.Value = value
				break
			}
		}
	}

	return inst, nil
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
