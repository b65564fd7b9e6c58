// Package graph implements the transaction engine that keeps the typed
// knowledge model (entities, relations with named roles, resources, and
// rules) consistent on top of the generic property-graph substrate.
package graph

import (
	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
)

// ConceptID is the opaque identifier of a concept, equal to the raw
// substrate vertex id.
type ConceptID string

// Concept is the discriminated root of the model. Public variants are
// *Type and *Instance; castings and shards stay internal to the engine.
type Concept interface {
	ID() ConceptID
	Kind() schema.BaseKind
}

// Type is a schema concept: entity type, relation type, resource type,
// role type, or rule type. Values handed out by a transaction are
// transaction-local copies; values inside the shared ontology cache are
// immutable snapshots.
type Type struct {
	id   ConceptID
	kind schema.BaseKind

	TypeID   int64
	Label    string
	Abstract bool
	Implicit bool

	// DataType is set for resource types only and never changes after
	// creation.
	DataType schema.DataType

	// Roles lists the role type ids declared on a relation type.
	Roles []int64

	// InstanceCount and CurrentShard mirror the vertex bookkeeping
	// properties as of the last read.
	InstanceCount int64
	CurrentShard  substrate.VertexID
}

func (t *Type) ID() ConceptID { return t.id }
func (t *Type) Kind() schema.BaseKind { return t.kind }

// IsMeta reports whether the type is part of the bootstrap ontology.
func (t *Type) IsMeta() bool { return schema.IsMetaLabel(t.Label) }

// DeclaresRole reports whether roleTypeID is on the relation type's role
// list.
func (t *Type) DeclaresRole(roleTypeID int64) bool {
	for _, r := range t.Roles {
		if r == roleTypeID {
			return true
		}
	}
	return false
}

// clone returns a transaction-local copy. Types reference related types
// by id rather than by pointer, so a flat copy plus a fresh role slice is
// a deep clone.
func (t *Type) clone() *Type {
	cp := *t
	cp.Roles = append([]int64(nil), t.Roles...)
	return &cp
}

// Instance is a data concept: entity, relation, resource, or rule. The
// Kind discriminates the variant.
type Instance struct {
	id   ConceptID
	kind schema.BaseKind

	// TypeID and TypeLabel identify the direct type.
	TypeID    int64
	TypeLabel string

	// Resource variants carry their declared datatype and decoded value.
	DataType schema.DataType
	Value    any
}

func (i *Instance) ID() ConceptID { return i.id }
func (i *Instance) Kind() schema.BaseKind { return i.kind }

func (i *Instance) IsEntity() bool   { return i.kind == schema.KindEntity }
func (i *Instance) IsRelation() bool { return i.kind == schema.KindRelation }
func (i *Instance) IsResource() bool { return i.kind == schema.KindResource }
func (i *Instance) IsRule() bool     { return i.kind == schema.KindRule }

// casting is the internal bridge concept recording that an instance plays
// a role. Never exposed on the public API.
type casting struct {
	id         ConceptID
	index      string
	roleTypeID int64
}

func (c *casting) ID() ConceptID { return c.id }
func (c *casting) Kind() schema.BaseKind { return schema.KindCasting }

// shard is the internal concept partitioning a type's instances.
type shard struct {
	id    ConceptID
	owner schema.BaseKind
}

func (s *shard) ID() ConceptID { return s.id }
func (s *shard) Kind() schema.BaseKind { return s.owner }

// RoleMap assigns each role type the set of instances playing it.
type RoleMap map[*Type][]*Instance
