package rostergraph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "graph.db"), slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })

	return store
}

func TestParseID(t *testing.T) {
	ref, err := ParseID("user:123")
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: "user", Key: "123"}, ref)

	// Keys may contain colons; only the first separator splits.
	ref, err = ParseID("work:abc:def")
	require.NoError(t, err)
	assert.Equal(t, "abc:def", ref.Key)

	for _, bad := range []string{"", "user", ":123", "user:"} {
		_, err := ParseID(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, "input %q", bad)
	}
}

func TestUpsertEntityOverwritesAttrs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ref := NewRef(KindUser, "u1")

	require.NoError(t, store.UpsertEntity(ctx, ref, Attrs{"name": "Ana", "email": "ana@example.com"}))

	// Last write wins: the stored attrs become exactly the new set.
	require.NoError(t, store.UpsertEntity(ctx, ref, Attrs{"name": "Ana María"}))

	got, err := store.Entity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Ana María", got.Attrs.String("name"))
	assert.Empty(t, got.Attrs.String("email"))
}

func TestEntityNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Entity(context.Background(), NewRef(KindUser, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityRejectsInvalidRef(t *testing.T) {
	store := newTestStore(t)

	err := store.UpsertEntity(context.Background(), Ref{Kind: KindUser}, nil)
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestRelateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	from := NewRef(KindUser, "u1")
	to := NewRef(KindCourse, "c1")
	require.NoError(t, store.UpsertEntity(ctx, from, nil))
	require.NoError(t, store.UpsertEntity(ctx, to, nil))

	edge := Edge{Type: EdgeStudent, From: from, To: to}
	require.NoError(t, store.Relate(ctx, edge))
	require.NoError(t, store.Relate(ctx, edge))

	edges, err := store.Edges(ctx, EdgeFilter{Type: EdgeStudent, To: to})
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestRelateOverwritesAttrs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	from := NewRef(KindUser, "u1")
	to := NewRef(KindWork, "w1")
	require.NoError(t, store.UpsertEntity(ctx, from, nil))
	require.NoError(t, store.UpsertEntity(ctx, to, nil))

	require.NoError(t, store.Relate(ctx, Edge{
		Type: EdgeAssigned, From: from, To: to,
		Attrs: Attrs{"state": "CREATED"},
	}))
	require.NoError(t, store.Relate(ctx, Edge{
		Type: EdgeAssigned, From: from, To: to,
		Attrs: Attrs{"state": "TURNED_IN", "grade": 95.0},
	}))

	edges, err := store.Edges(ctx, EdgeFilter{Type: EdgeAssigned, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "TURNED_IN", edges[0].Attrs.String("state"))

	grade, ok := edges[0].Attrs.Float("grade")
	require.True(t, ok)
	assert.InDelta(t, 95.0, grade, 0.001)
}

func TestHasEdge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	from := NewRef(KindUser, "u1")
	to := NewRef(KindCourse, "c1")
	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeOwner, From: from, To: to}))

	ok, err := store.HasEdge(ctx, EdgeOwner, from, to)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same endpoints, different type.
	ok, err = store.HasEdge(ctx, EdgeTeacher, from, to)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEdgesFilterWildcards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	course := NewRef(KindCourse, "c1")
	other := NewRef(KindCourse, "c2")

	for _, userKey := range []string{"u1", "u2"} {
		require.NoError(t, store.Relate(ctx, Edge{Type: EdgeStudent, From: NewRef(KindUser, userKey), To: course}))
	}

	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeStudent, From: NewRef(KindUser, "u3"), To: other}))

	edges, err := store.Edges(ctx, EdgeFilter{Type: EdgeStudent, To: course})
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	edges, err = store.Edges(ctx, EdgeFilter{Type: EdgeStudent})
	require.NoError(t, err)
	assert.Len(t, edges, 3)

	_, err = store.Edges(ctx, EdgeFilter{})
	assert.Error(t, err)
}

func TestUnrelate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	course := NewRef(KindCourse, "c1")
	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeStudent, From: NewRef(KindUser, "u1"), To: course}))
	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeStudent, From: NewRef(KindUser, "u2"), To: course}))
	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeTeacher, From: NewRef(KindUser, "u3"), To: course}))

	n, err := store.Unrelate(ctx, EdgeFilter{Type: EdgeStudent, To: course})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Teacher edge untouched.
	ok, err := store.HasEdge(ctx, EdgeTeacher, NewRef(KindUser, "u3"), course)
	require.NoError(t, err)
	assert.True(t, ok)

	// Deleting nothing is not an error.
	n, err = store.Unrelate(ctx, EdgeFilter{Type: EdgeStudent, To: course})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSourcesAndTargets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	course := NewRef(KindCourse, "c1")
	require.NoError(t, store.UpsertEntity(ctx, course, Attrs{"name": "Math"}))

	// Insert out of order to verify deterministic ordering by entity ID.
	for _, key := range []string{"u2", "u1"} {
		ref := NewRef(KindUser, key)
		require.NoError(t, store.UpsertEntity(ctx, ref, Attrs{"name": "Student " + key}))
		require.NoError(t, store.Relate(ctx, Edge{
			Type: EdgeStudent, From: ref, To: course,
			Attrs: Attrs{"joined": key},
		}))
	}

	sources, err := store.Sources(ctx, EdgeStudent, course)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "u1", sources[0].Entity.Ref.Key)
	assert.Equal(t, "u2", sources[1].Entity.Ref.Key)
	assert.Equal(t, "Student u1", sources[0].Entity.Attrs.String("name"))
	assert.Equal(t, "u1", sources[0].EdgeAttrs.String("joined"))

	targets, err := store.Targets(ctx, EdgeStudent, NewRef(KindUser, "u1"))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "Math", targets[0].Entity.Attrs.String("name"))
}

func TestApplyBatchOrderAndAtomicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	course := NewRef(KindCourse, "c1")
	u1 := NewRef(KindUser, "u1")
	u2 := NewRef(KindUser, "u2")

	require.NoError(t, store.UpsertEntity(ctx, course, nil))
	require.NoError(t, store.UpsertEntity(ctx, u1, nil))
	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeStudent, From: u1, To: course}))

	// Reconciliation shape: delete one membership, create another, upsert
	// the new member's profile, all in one transaction.
	batch := &Batch{
		UpsertEntities: []Entity{{Ref: u2, Attrs: Attrs{"name": "Berta"}}},
		DeleteEdges:    []EdgeFilter{{Type: EdgeStudent, From: u1, To: course}},
		CreateEdges:    []Edge{{Type: EdgeStudent, From: u2, To: course}},
	}
	require.NoError(t, store.Apply(ctx, batch))

	edges, err := store.Edges(ctx, EdgeFilter{Type: EdgeStudent, To: course})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "u2", edges[0].From.Key)

	// A batch with an invalid edge ref rolls back entirely.
	bad := &Batch{
		UpsertEntities: []Entity{{Ref: NewRef(KindUser, "u3")}},
		CreateEdges:    []Edge{{Type: EdgeStudent, From: Ref{}, To: course}},
	}
	require.Error(t, store.Apply(ctx, bad))

	_, err = store.Entity(ctx, NewRef(KindUser, "u3"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyEmptyBatch(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.Apply(context.Background(), &Batch{}))
}

func TestDeleteEntityLeavesEdges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cell := NewRef(KindCell, "x")
	teacher := NewRef(KindUser, "t1")
	require.NoError(t, store.UpsertEntity(ctx, cell, Attrs{"name": "Group A"}))
	require.NoError(t, store.Relate(ctx, Edge{Type: EdgeBelongsTo, From: cell, To: teacher}))

	require.NoError(t, store.DeleteEntity(ctx, cell))

	_, err := store.Entity(ctx, cell)
	assert.ErrorIs(t, err, ErrNotFound)

	// Edges are not cascaded; callers retire them in the same batch.
	ok, err := store.HasEdge(ctx, EdgeBelongsTo, cell, teacher)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyConcurrentBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	course := NewRef(KindCourse, "c1")
	require.NoError(t, store.UpsertEntity(ctx, course, Attrs{"name": "Algebra"}))

	// Writers from separate goroutines queue on the store; none may
	// fail with a busy database.
	var wg sync.WaitGroup

	errs := make([]error, 4)

	for i := range errs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			batch := &Batch{}

			for j := 0; j < 10; j++ {
				ref := NewRef(KindUser, fmt.Sprintf("u%d-%d", i, j))
				batch.UpsertEntities = append(batch.UpsertEntities, Entity{
					Ref:   ref,
					Attrs: Attrs{"name": ref.Key},
				})
				batch.CreateEdges = append(batch.CreateEdges, Edge{
					Type: EdgeStudent, From: ref, To: course,
				})
			}

			errs[i] = store.Apply(ctx, batch)
		}()
	}

	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "batch %d", i)
	}

	edges, err := store.Edges(ctx, EdgeFilter{Type: EdgeStudent, To: course})
	require.NoError(t, err)
	assert.Len(t, edges, 40)
}
