// Package substrate defines the property-graph contract the engine is
// built on: vertices, directed labelled edges, string-valued properties,
// iteration by property value, and per-session transactions. The engine
// assumes nothing else of the store, in particular no secondary indexes
// beyond vertex-by-property.
package substrate

import (
	"context"
	"errors"
)

// VertexID is the substrate's opaque vertex identifier.
type VertexID string

// EdgeID is the substrate's opaque edge identifier.
type EdgeID string

// Vertex is a raw substrate vertex. Props is a snapshot as of the read;
// mutate through the transaction, not the map.
type Vertex struct {
	ID    VertexID
	Kind  string
	Props map[string]string
}

// Prop returns the property value for key, or "" when unset.
func (v *Vertex) Prop(key string) string {
	if v == nil || v.Props == nil {
		return ""
	}
	return v.Props[key]
}

// Edge is a raw substrate edge.
type Edge struct {
	ID    EdgeID
	From  VertexID
	To    VertexID
	Label string
	Props map[string]string
}

// Prop returns the edge property value for key, or "" when unset.
func (e *Edge) Prop(key string) string {
	if e == nil || e.Props == nil {
		return ""
	}
	return e.Props[key]
}

// Store opens transactional sessions against one keyspace.
type Store interface {
	// Begin opens a session transaction. A read-only transaction rejects
	// mutations at the substrate level as well as at the engine level.
	Begin(ctx context.Context, readOnly bool) (Tx, error)

	// Close releases the store.
	Close() error
}

// ErrTxClosed is returned for operations on a finished transaction.
var ErrTxClosed = errors.New("substrate: transaction is closed")

// ErrConflict is returned when a commit loses a write-write race. Callers
// retry the whole transaction.
var ErrConflict = errors.New("substrate: transaction conflict")

// ErrNotFound is returned for lookups of missing vertices or edges.
var ErrNotFound = errors.New("substrate: not found")

// Tx is a session transaction. Within one transaction, reads observe the
// transaction's own prior writes. Rollback after Commit is a no-op, so
// `defer tx.Rollback()` is always safe.
type Tx interface {
	AddVertex(ctx context.Context, kind string) (*Vertex, error)
	RemoveVertex(ctx context.Context, id VertexID) error
	VertexByID(ctx context.Context, id VertexID) (*Vertex, error)

	// VerticesByProperty returns every vertex whose property key equals
	// value. The sequence is finite and restartable only by re-issuing
	// the traversal.
	VerticesByProperty(ctx context.Context, key, value string) ([]*Vertex, error)

	SetProperty(ctx context.Context, id VertexID, key, value string) error
	RemoveProperty(ctx context.Context, id VertexID, key string) error

	AddEdge(ctx context.Context, from, to VertexID, label string) (*Edge, error)
	RemoveEdge(ctx context.Context, id EdgeID) error
	SetEdgeProperty(ctx context.Context, id EdgeID, key, value string) error

	// OutEdges and InEdges list incident edges, optionally filtered by
	// label ("" matches all).
	OutEdges(ctx context.Context, id VertexID, label string) ([]*Edge, error)
	InEdges(ctx context.Context, id VertexID, label string) ([]*Edge, error)

	Commit(ctx context.Context) error
	Rollback() error
}
