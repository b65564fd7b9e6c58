package badgerstore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-kb/lattice.graph/internal/substrate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(Config{InMemory: true}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestVertexLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()

	v, err := tx.AddVertex(ctx, "ENTITY")
	require.NoError(t, err)
	require.NotEmpty(t, v.ID)

	require.NoError(t, tx.SetProperty(ctx, v.ID, "TYPE_LABEL", "person"))

	got, err := tx.VertexByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "ENTITY", got.Kind)
	assert.Equal(t, "person", got.Prop("TYPE_LABEL"))

	require.NoError(t, tx.Commit(ctx))

	// visible to a fresh transaction
	tx2, err := s.Begin(ctx, true)
	require.NoError(t, err)
	defer tx2.Rollback()
	got, err = tx2.VertexByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "person", got.Prop("TYPE_LABEL"))
}

func TestVerticesByProperty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()

	a, _ := tx.AddVertex(ctx, "ENTITY")
	b, _ := tx.AddVertex(ctx, "ENTITY")
	c, _ := tx.AddVertex(ctx, "ENTITY")
	require.NoError(t, tx.SetProperty(ctx, a.ID, "VALUE_STRING", "alice"))
	require.NoError(t, tx.SetProperty(ctx, b.ID, "VALUE_STRING", "alice"))
	require.NoError(t, tx.SetProperty(ctx, c.ID, "VALUE_STRING", "bob"))

	// uncommitted writes are visible within the transaction
	got, err := tx.VerticesByProperty(ctx, "VALUE_STRING", "alice")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// value is a prefix of another value; separator keeps them apart
	got, err = tx.VerticesByProperty(ctx, "VALUE_STRING", "ali")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetProperty_ReindexesOldValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()

	v, _ := tx.AddVertex(ctx, "ENTITY")
	require.NoError(t, tx.SetProperty(ctx, v.ID, "INDEX", "old"))
	require.NoError(t, tx.SetProperty(ctx, v.ID, "INDEX", "new"))

	got, err := tx.VerticesByProperty(ctx, "INDEX", "old")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = tx.VerticesByProperty(ctx, "INDEX", "new")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()

	rel, _ := tx.AddVertex(ctx, "RELATION")
	cast, _ := tx.AddVertex(ctx, "CASTING")
	player, _ := tx.AddVertex(ctx, "ENTITY")

	e1, err := tx.AddEdge(ctx, rel.ID, cast.ID, "CASTING")
	require.NoError(t, err)
	_, err = tx.AddEdge(ctx, cast.ID, player.ID, "ROLE_PLAYER")
	require.NoError(t, err)
	require.NoError(t, tx.SetEdgeProperty(ctx, e1.ID, "ROLE_TYPE_ID", "12"))

	out, err := tx.OutEdges(ctx, rel.ID, "CASTING")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, cast.ID, out[0].To)
	assert.Equal(t, "12", out[0].Prop("ROLE_TYPE_ID"))

	in, err := tx.InEdges(ctx, player.ID, "ROLE_PLAYER")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, cast.ID, in[0].From)

	// unfiltered listing
	all, err := tx.OutEdges(ctx, cast.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, tx.RemoveEdge(ctx, e1.ID))
	out, err = tx.OutEdges(ctx, rel.ID, "CASTING")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRemoveVertex_CleansEdgesAndIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()

	a, _ := tx.AddVertex(ctx, "ENTITY")
	b, _ := tx.AddVertex(ctx, "ENTITY")
	require.NoError(t, tx.SetProperty(ctx, a.ID, "INDEX", "idx-a"))
	_, err = tx.AddEdge(ctx, a.ID, b.ID, "SHORTCUT")
	require.NoError(t, err)

	require.NoError(t, tx.RemoveVertex(ctx, a.ID))

	_, err = tx.VertexByID(ctx, a.ID)
	assert.ErrorIs(t, err, substrate.ErrNotFound)

	got, err := tx.VerticesByProperty(ctx, "INDEX", "idx-a")
	require.NoError(t, err)
	assert.Empty(t, got)

	in, err := tx.InEdges(ctx, b.ID, "SHORTCUT")
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestReadOnlyTxRejectsWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.AddVertex(ctx, "ENTITY")
	assert.Error(t, err)
}

func TestClosedTxRejectsOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v, err := tx.AddVertex(ctx, "ENTITY")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	_, err = tx.VertexByID(ctx, v.ID)
	assert.ErrorIs(t, err, substrate.ErrTxClosed)

	// rollback after commit is a no-op
	assert.NoError(t, tx.Rollback())
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v, err := tx.AddVertex(ctx, "ENTITY")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	tx2, err := s.Begin(ctx, true)
	require.NoError(t, err)
	defer tx2.Rollback()
	_, err = tx2.VertexByID(ctx, v.ID)
	assert.ErrorIs(t, err, substrate.ErrNotFound)
}

func TestCommitConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// seed a vertex both transactions will touch
	seed, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v, err := seed.AddVertex(ctx, "TYPE")
	require.NoError(t, err)
	require.NoError(t, seed.SetProperty(ctx, v.ID, "INSTANCE_COUNT", "0"))
	require.NoError(t, seed.Commit(ctx))

	tx1, err := s.Begin(ctx, false)
	require.NoError(t, err)
	tx2, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx2.Rollback()

	// both read-modify-write the same key
	_, err = tx1.VertexByID(ctx, v.ID)
	require.NoError(t, err)
	_, err = tx2.VertexByID(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, tx1.SetProperty(ctx, v.ID, "INSTANCE_COUNT", "1"))
	require.NoError(t, tx2.SetProperty(ctx, v.ID, "INSTANCE_COUNT", "2"))

	require.NoError(t, tx1.Commit(ctx))
	err = tx2.Commit(ctx)
	assert.ErrorIs(t, err, substrate.ErrConflict)
}
