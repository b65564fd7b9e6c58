package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-kb/lattice.graph/domain/schema"
)

// buildDuplicateParentage commits the ontology, the two entities, and the
// same parentage fact from two overlapping transactions, returning the
// casting indexes with their duplicate vertex ids.
func buildDuplicateParentage(t *testing.T, ctx context.Context, g *Graph) map[string][]ConceptID {
	t.Helper()

	setup := writeTx(t, g)
	person, _, _, _ := declareParentage(t, ctx, setup)
	alice, err := setup.AddEntity(ctx, person)
	require.NoError(t, err)
	bob, err := setup.AddEntity(ctx, person)
	require.NoError(t, err)
	_, err = setup.Commit(ctx)
	require.NoError(t, err)

	// both loaders are open before either commits, so neither sees the
	// other's writes and each builds its own relation and castings
	txs := []*Transaction{writeTx(t, g), writeTx(t, g)}
	for _, tx := range txs {
		pt, err := tx.GetType(ctx, "parentage")
		require.NoError(t, err)
		pr, err := tx.GetType(ctx, "parent")
		require.NoError(t, err)
		ch, err := tx.GetType(ctx, "child")
		require.NoError(t, err)
		a, err := tx.GetConcept(ctx, alice.ID())
		require.NoError(t, err)
		b, err := tx.GetConcept(ctx, bob.ID())
		require.NoError(t, err)

		_, err = tx.AddRelation(ctx, pt, RoleMap{
			pr: {a.(*Instance)},
			ch: {b.(*Instance)},
		})
		require.NoError(t, err)
	}

	duplicates := make(map[string][]ConceptID)
	for _, tx := range txs {
		payload, err := tx.Commit(ctx)
		require.NoError(t, err)
		require.NotNil(t, payload)
		for _, entry := range payload.Castings {
			for _, id := range entry.ConceptIDs {
				duplicates[entry.Index] = append(duplicates[entry.Index], ConceptID(id))
			}
		}
	}
	return duplicates
}

func countByIndex(t *testing.T, ctx context.Context, g *Graph, index string) int {
	t.Helper()
	tx, err := g.NewTransaction(ctx, Read)
	require.NoError(t, err)
	defer tx.Abort()
	concepts, err := tx.conceptsByProperty(ctx, schema.PropIndex, index)
	require.NoError(t, err)
	return len(concepts)
}

func TestFixDuplicateCastings_OnePerRolePlayerPair(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t, testConfig())
	duplicates := buildDuplicateParentage(t, ctx, g)
	require.Len(t, duplicates, 2, "parent and child casting indexes")

	for index, ids := range duplicates {
		require.Len(t, ids, 2, "each pair was cast once per transaction")

		tx := writeTx(t, g)
		merged, err := tx.FixDuplicateCastings(ctx, index, ids)
		require.NoError(t, err)
		assert.True(t, merged)
		_, err = tx.CommitNoLogs(ctx)
		require.NoError(t, err)
	}

	for index := range duplicates {
		assert.Equal(t, 1, countByIndex(t, ctx, g, index),
			"at most one casting vertex per (role, player) pair")
	}
}

func TestFixDuplicateCastings_NothingToMerge(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t, testConfig())
	duplicates := buildDuplicateParentage(t, ctx, g)

	for index, ids := range duplicates {
		tx := writeTx(t, g)
		merged, err := tx.FixDuplicateCastings(ctx, index, ids)
		require.NoError(t, err)
		require.True(t, merged)
		_, err = tx.CommitNoLogs(ctx)
		require.NoError(t, err)

		// a second pass over the same entry finds nothing left to do
		tx2 := writeTx(t, g)
		merged, err = tx2.FixDuplicateCastings(ctx, index, ids)
		require.NoError(t, err)
		assert.False(t, merged)
	}
}
